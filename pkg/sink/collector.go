package sink

import (
	"sync"

	"github.com/agleyzer/hlsfetch/pkg/pipeline"
)

// Collector keeps every delivery in memory. Buffers are stored as given.
type Collector struct {
	mu         sync.Mutex
	deliveries []pipeline.Delivery
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Deliver records a buffer with no segment information.
func (c *Collector) Deliver(data []byte) error {
	return c.DeliverSegment(pipeline.Delivery{Kind: pipeline.KindMedia, Index: c.Len(), Data: data})
}

// DeliverSegment records d.
func (c *Collector) DeliverSegment(d pipeline.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries = append(c.deliveries, d)
	return nil
}

// Deliveries returns the recorded deliveries in order.
func (c *Collector) Deliveries() []pipeline.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pipeline.Delivery, len(c.deliveries))
	copy(out, c.deliveries)
	return out
}

// Len returns the number of deliveries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deliveries)
}

// TotalBytes returns the sum of all buffer sizes.
func (c *Collector) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, d := range c.deliveries {
		n += int64(len(d.Data))
	}
	return n
}
