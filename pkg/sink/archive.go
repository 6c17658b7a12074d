package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/agleyzer/hlsfetch/pkg/pipeline"
	"github.com/hashicorp/go-hclog"
)

// Archive writes each delivered buffer to a file in a directory. Close writes
// a playlist referencing the files so the result plays back locally.
type Archive struct {
	dir    string
	logger hclog.Logger

	mu     sync.Mutex
	vod    vodPlaylist
	closed bool
}

// NewArchive creates dir if needed and returns an archive writing into it.
func NewArchive(dir string, logger hclog.Logger) (*Archive, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Archive{
		dir:    dir,
		logger: logger.Named("archive"),
	}, nil
}

// Dir returns the output directory.
func (a *Archive) Dir() string {
	return a.dir
}

// Deliver stores a buffer with no segment information as the next media file.
func (a *Archive) Deliver(data []byte) error {
	a.mu.Lock()
	index := len(a.vod.entries)
	a.mu.Unlock()
	return a.DeliverSegment(pipeline.Delivery{Kind: pipeline.KindMedia, Index: index, Data: data})
}

// DeliverSegment writes d to its own file.
func (a *Archive) DeliverSegment(d pipeline.Delivery) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("archive %s is closed", a.dir)
	}

	name := fileName(d)
	if err := os.WriteFile(filepath.Join(a.dir, name), d.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	a.vod.add(d, name)

	a.logger.Debug("stored", "file", name, "bytes", len(d.Data))
	return nil
}

// Close writes the playlist. Later deliveries fail.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	data, err := a.vod.encode()
	if err != nil {
		return fmt.Errorf("encode playlist: %w", err)
	}
	if err := os.WriteFile(filepath.Join(a.dir, PlaylistName), data, 0o644); err != nil {
		return fmt.Errorf("write playlist: %w", err)
	}

	a.logger.Info("archive written", "dir", a.dir, "segments", len(a.vod.entries))
	return nil
}
