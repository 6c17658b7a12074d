package sink

import (
	"math"

	"github.com/agleyzer/hlsfetch/pkg/pipeline"
	"github.com/grafov/m3u8"
)

type vodEntry struct {
	name     string
	duration float64
}

// vodPlaylist tracks stored files and renders a closed media playlist that
// references them by name.
type vodPlaylist struct {
	initName string
	entries  []vodEntry
}

func (v *vodPlaylist) add(d pipeline.Delivery, name string) {
	if d.Kind == pipeline.KindInit {
		v.initName = name
		return
	}
	v.entries = append(v.entries, vodEntry{name: name, duration: d.Segment.Duration})
}

func (v *vodPlaylist) encode() ([]byte, error) {
	capacity := uint(len(v.entries))
	if capacity == 0 {
		capacity = 1
	}

	p, err := m3u8.NewMediaPlaylist(0, capacity)
	if err != nil {
		return nil, err
	}
	if v.initName != "" {
		p.SetDefaultMap(v.initName, 0, 0)
	}

	var target float64
	for _, e := range v.entries {
		if err := p.Append(e.name, e.duration, ""); err != nil {
			return nil, err
		}
		target = math.Max(target, math.Ceil(e.duration))
	}
	p.TargetDuration = target
	p.Close()

	return p.Encode().Bytes(), nil
}
