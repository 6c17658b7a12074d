// Package segment defines data structures for HLS media segments.
package segment

// Segment represents a single HLS media segment.
type Segment struct {
	// URI is the segment location as written in the playlist (usually relative)
	URI string

	// Duration is the segment duration in seconds
	Duration float64

	// Sequence is the position in the source playlist
	Sequence int

	// InitMap is the initialization section in effect for this segment.
	// Nil when the playlist declares no EXT-X-MAP before the segment.
	InitMap *InitSegmentRef
}

// InitSegmentRef points at a media initialization section (EXT-X-MAP).
type InitSegmentRef struct {
	// URI is the location of the initialization section
	URI string

	// Length and Offset mirror an optional BYTERANGE attribute.
	// Both are zero when the whole resource is the init section.
	Length int64
	Offset int64
}

// HasByteRange reports whether the map declared a BYTERANGE.
func (r *InitSegmentRef) HasByteRange() bool {
	return r != nil && r.Length > 0
}
