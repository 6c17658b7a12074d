package pipeline

import "github.com/agleyzer/hlsfetch/pkg/segment"

// Kind tells an init buffer from a media buffer.
type Kind int

const (
	// KindInit is the initialization section named by EXT-X-MAP
	KindInit Kind = iota
	// KindMedia is a media segment
	KindMedia
)

func (k Kind) String() string {
	if k == KindInit {
		return "init"
	}
	return "media"
}

// ByteSink receives fetched buffers in manifest order. The sink owns the
// slice it is given; the pipeline does not touch it again.
type ByteSink interface {
	Deliver(data []byte) error
}

// SegmentSink is a ByteSink that also wants to know what each buffer is.
// When a sink implements it, DeliverSegment is called instead of Deliver.
type SegmentSink interface {
	ByteSink
	DeliverSegment(d Delivery) error
}

// Delivery describes one fetched buffer.
type Delivery struct {
	Kind Kind

	// Index is the segment position, -1 for the init segment
	Index int

	// URL the bytes were fetched from
	URL string

	// Segment is the media segment, or for an init delivery the segment
	// whose map was fetched
	Segment segment.Segment

	Data []byte
}

// SinkFunc adapts a function to the ByteSink interface.
type SinkFunc func(data []byte) error

// Deliver calls f.
func (f SinkFunc) Deliver(data []byte) error {
	return f(data)
}

func deliver(sink ByteSink, d Delivery) error {
	if ss, ok := sink.(SegmentSink); ok {
		return ss.DeliverSegment(d)
	}
	return sink.Deliver(d.Data)
}
