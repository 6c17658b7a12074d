package sink

import (
	"fmt"

	"github.com/agleyzer/hlsfetch/pkg/pipeline"
)

// Tee hands every delivery to each of its sinks in order. The first failing
// sink stops the delivery.
type Tee struct {
	sinks []pipeline.ByteSink
}

// NewTee creates a tee over sinks. Nil sinks are skipped.
func NewTee(sinks ...pipeline.ByteSink) *Tee {
	t := &Tee{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	return t
}

// Deliver forwards a buffer with no segment information.
func (t *Tee) Deliver(data []byte) error {
	for i, s := range t.sinks {
		if err := s.Deliver(data); err != nil {
			return fmt.Errorf("tee sink %d: %w", i, err)
		}
	}
	return nil
}

// DeliverSegment forwards d, calling DeliverSegment on sinks that support it.
func (t *Tee) DeliverSegment(d pipeline.Delivery) error {
	for i, s := range t.sinks {
		if err := deliver(s, d); err != nil {
			return fmt.Errorf("tee sink %d: %w", i, err)
		}
	}
	return nil
}
