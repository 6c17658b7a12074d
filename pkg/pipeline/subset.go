package pipeline

import (
	"time"

	"github.com/agleyzer/hlsfetch/pkg/segment"
)

// Subset returns a prefix of segments that fits within maxDuration.
// It sums segment durations from the start until the threshold is reached.
// A segment is included if adding it doesn't exceed the threshold by more than 50%.
// Returns at least 1 segment even if the first segment exceeds the duration.
func Subset(segments []segment.Segment, maxDuration time.Duration) []segment.Segment {
	if len(segments) == 0 {
		return segments
	}

	// If maxDuration is 0, return all segments
	if maxDuration <= 0 {
		return segments
	}

	maxDurationSeconds := maxDuration.Seconds()
	var totalDuration float64
	var result []segment.Segment

	for i, seg := range segments {
		// Always include at least the first segment
		if i == 0 {
			result = append(result, seg)
			totalDuration += seg.Duration
			continue
		}

		newTotal := totalDuration + seg.Duration
		if newTotal <= maxDurationSeconds {
			result = append(result, seg)
			totalDuration = newTotal
			continue
		}

		// Would exceed threshold; keep it only if the overshoot is small
		if newTotal-maxDurationSeconds <= maxDurationSeconds*0.5 {
			result = append(result, seg)
		}
		break
	}

	return result
}
