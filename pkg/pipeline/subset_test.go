package pipeline

import (
	"testing"
	"time"

	"github.com/agleyzer/hlsfetch/pkg/segment"
)

func TestSubset(t *testing.T) {
	tests := []struct {
		name        string
		segments    []segment.Segment
		maxDuration time.Duration
		wantCount   int
		wantTotal   float64
	}{
		{
			name: "zero duration keeps everything",
			segments: []segment.Segment{
				{URI: "seg0.ts", Duration: 10.0},
				{URI: "seg1.ts", Duration: 10.0},
				{URI: "seg2.ts", Duration: 10.0},
			},
			maxDuration: 0,
			wantCount:   3,
			wantTotal:   30.0,
		},
		{
			name:        "empty stays empty",
			segments:    []segment.Segment{},
			maxDuration: 10 * time.Second,
			wantCount:   0,
		},
		{
			name: "first segment always kept",
			segments: []segment.Segment{
				{URI: "seg0.ts", Duration: 15.0},
				{URI: "seg1.ts", Duration: 10.0},
			},
			maxDuration: 10 * time.Second,
			wantCount:   1,
			wantTotal:   15.0,
		},
		{
			name: "overshoot of exactly 50% is kept",
			segments: []segment.Segment{
				{URI: "seg0.ts", Duration: 10.0},
				{URI: "seg1.ts", Duration: 5.0},
				{URI: "seg2.ts", Duration: 5.0},
			},
			maxDuration: 10 * time.Second,
			wantCount:   2,
			wantTotal:   15.0,
		},
		{
			name: "overshoot above 50% is dropped",
			segments: []segment.Segment{
				{URI: "seg0.ts", Duration: 8.0},
				{URI: "seg1.ts", Duration: 8.0},
				{URI: "seg2.ts", Duration: 8.0},
			},
			maxDuration: 10 * time.Second,
			wantCount:   1,
			wantTotal:   8.0,
		},
		{
			name: "thirty seconds of ten second segments",
			segments: []segment.Segment{
				{URI: "seg0.ts", Duration: 9.9},
				{URI: "seg1.ts", Duration: 10.0},
				{URI: "seg2.ts", Duration: 10.1},
				{URI: "seg3.ts", Duration: 10.0},
				{URI: "seg4.ts", Duration: 10.0},
			},
			maxDuration: 30 * time.Second,
			wantCount:   4,
			wantTotal:   40.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Subset(tt.segments, tt.maxDuration)

			if len(result) != tt.wantCount {
				t.Fatalf("Subset() returned %d segments, want %d", len(result), tt.wantCount)
			}

			var total float64
			for i, seg := range result {
				total += seg.Duration
				if seg.URI != tt.segments[i].URI {
					t.Errorf("segment[%d] URI = %s, want %s", i, seg.URI, tt.segments[i].URI)
				}
			}

			if total != tt.wantTotal {
				t.Errorf("Subset() total duration = %.1f, want %.1f", total, tt.wantTotal)
			}
		})
	}
}

func TestSubset_PreservesInitMap(t *testing.T) {
	initRef := &segment.InitSegmentRef{URI: "init.mp4"}
	segments := []segment.Segment{
		{URI: "seg0.m4s", Duration: 5.0, Sequence: 0, InitMap: initRef},
		{URI: "seg1.m4s", Duration: 5.0, Sequence: 1, InitMap: initRef},
	}

	result := Subset(segments, 10*time.Second)
	if len(result) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result))
	}
	if result[0].InitMap != initRef {
		t.Error("init map not preserved on first segment")
	}
}
