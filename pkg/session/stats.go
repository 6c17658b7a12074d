package session

import (
	"time"

	"github.com/agleyzer/hlsfetch/internal/metrics"
	"github.com/agleyzer/hlsfetch/pkg/pipeline"
	"github.com/agleyzer/hlsfetch/pkg/variant"
)

// Stats is a snapshot of a session's progress.
type Stats struct {
	ID          string           `json:"id"`
	State       State            `json:"state"`
	ManifestURL string           `json:"manifest_url"`
	MediaURL    string           `json:"media_url,omitempty"`
	Variant     *variant.Variant `json:"variant,omitempty"`

	InitDelivered     bool  `json:"init_delivered"`
	SegmentsTotal     int   `json:"segments_total"`
	SegmentsDelivered int   `json:"segments_delivered"`
	BytesDelivered    int64 `json:"bytes_delivered"`
	Retries           int   `json:"retries"`

	// StartedAt and FinishedAt are nil until the session starts and ends
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Err        string    `json:"error,omitempty"`
}

// countingSink updates stats and metrics, then forwards to the caller's sink.
type countingSink struct {
	session *Session
	next    pipeline.ByteSink
}

func (c *countingSink) Deliver(data []byte) error {
	return c.DeliverSegment(pipeline.Delivery{Kind: pipeline.KindMedia, Data: data})
}

func (c *countingSink) DeliverSegment(d pipeline.Delivery) error {
	var err error
	if ss, ok := c.next.(pipeline.SegmentSink); ok {
		err = ss.DeliverSegment(d)
	} else {
		err = c.next.Deliver(d.Data)
	}
	if err != nil {
		return err
	}

	metrics.RecordDelivery(d.Kind.String(), len(d.Data))

	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Kind == pipeline.KindInit {
		s.stats.InitDelivered = true
	} else {
		s.stats.SegmentsDelivered++
	}
	s.stats.BytesDelivered += int64(len(d.Data))
	return nil
}

func timestamp() *time.Time {
	now := time.Now()
	return &now
}
