package pipeline

import (
	"errors"
	"fmt"
)

// ErrMissingInitSegment is matched by InitSegmentError.
var ErrMissingInitSegment = errors.New("missing init segment")

// InitSegmentError means a declared EXT-X-MAP could not be fetched.
type InitSegmentError struct {
	URL string
	Err error
}

func (e *InitSegmentError) Error() string {
	return fmt.Sprintf("%v %s: %v", ErrMissingInitSegment, e.URL, e.Err)
}

func (e *InitSegmentError) Unwrap() error { return e.Err }

func (e *InitSegmentError) Is(target error) bool { return target == ErrMissingInitSegment }

// SegmentFetchError is the first media segment that could not be fetched.
type SegmentFetchError struct {
	Index int
	URL   string
	Err   error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("segment %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *SegmentFetchError) Unwrap() error { return e.Err }

// SinkError is a sink refusing a delivery. Index is -1 for the init segment.
type SinkError struct {
	Index int
	Err   error
}

func (e *SinkError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("deliver init segment: %v", e.Err)
	}
	return fmt.Sprintf("deliver segment %d: %v", e.Index, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
