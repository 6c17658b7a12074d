// Package pipeline retrieves the initialization and media segments of a
// media playlist, in order, and hands each buffer to a sink.
package pipeline

import (
	"context"
	"strings"

	"github.com/agleyzer/hlsfetch/pkg/playlist"
	"github.com/hashicorp/go-hclog"
)

// FetchFunc returns the raw bytes at an absolute URL. kind tells whether an
// init or a media segment is being fetched.
type FetchFunc func(ctx context.Context, kind Kind, url string) ([]byte, error)

// Pipeline fetches segments one at a time.
type Pipeline struct {
	fetch  FetchFunc
	logger hclog.Logger
}

// New creates a pipeline. A nil logger discards output.
func New(fetch FetchFunc, logger hclog.Logger) *Pipeline {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Pipeline{
		fetch:  fetch,
		logger: logger,
	}
}

// Run delivers the init segment of the first segment (if it declares one)
// followed by every media segment. It stops at the first failure.
func (p *Pipeline) Run(ctx context.Context, media *playlist.Media, baseURL string, sink ByteSink) error {
	if media == nil || len(media.Segments) == 0 {
		p.logger.Debug("media playlist has no segments")
		return nil
	}

	first := media.Segments[0]
	if first.InitMap != nil {
		initURL := ResolveURI(baseURL, first.InitMap.URI)

		data, err := p.fetch(ctx, KindInit, initURL)
		if err != nil {
			return &InitSegmentError{URL: initURL, Err: err}
		}

		p.logger.Debug("init segment fetched", "url", initURL, "bytes", len(data))

		d := Delivery{Kind: KindInit, Index: -1, URL: initURL, Segment: first, Data: data}
		if err := deliver(sink, d); err != nil {
			return &SinkError{Index: -1, Err: err}
		}
	}

	for i, seg := range media.Segments {
		if err := ctx.Err(); err != nil {
			return err
		}

		segURL := ResolveURI(baseURL, seg.URI)

		data, err := p.fetch(ctx, KindMedia, segURL)
		if err != nil {
			return &SegmentFetchError{Index: i, URL: segURL, Err: err}
		}

		p.logger.Debug("segment fetched", "index", i, "url", segURL, "bytes", len(data))

		d := Delivery{Kind: KindMedia, Index: i, URL: segURL, Segment: seg, Data: data}
		if err := deliver(sink, d); err != nil {
			return &SinkError{Index: i, Err: err}
		}
	}

	p.logger.Info("segments delivered", "count", len(media.Segments))
	return nil
}

// ResolveURI joins a playlist-relative URI onto a base by plain
// concatenation. Absolute http(s) URIs are returned unchanged.
func ResolveURI(baseURL, uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	return baseURL + uri
}

// BaseOf returns the directory part of a playlist URL, up to and including
// the last slash of the path. Query and fragment are dropped.
func BaseOf(playlistURL string) string {
	u := playlistURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}

	// Keep scheme://host intact
	start := 0
	if i := strings.Index(u, "://"); i >= 0 {
		start = i + len("://")
	}

	slash := strings.LastIndex(u[start:], "/")
	if slash < 0 {
		return u + "/"
	}
	return u[:start+slash+1]
}
