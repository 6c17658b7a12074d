// Package sink provides consumers for the buffers a session delivers.
package sink

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/agleyzer/hlsfetch/pkg/pipeline"
)

// PlaylistName is the name of the local playlist written on Close.
const PlaylistName = "playlist.m3u8"

func deliver(s pipeline.ByteSink, d pipeline.Delivery) error {
	if ss, ok := s.(pipeline.SegmentSink); ok {
		return ss.DeliverSegment(d)
	}
	return s.Deliver(d.Data)
}

// fileName names a delivered buffer after its kind and position, keeping the
// extension of the source URL.
func fileName(d pipeline.Delivery) string {
	ext := extension(d.URL)
	if d.Kind == pipeline.KindInit {
		if ext == "" {
			ext = ".mp4"
		}
		return "init" + ext
	}
	if ext == "" {
		ext = ".ts"
	}
	return fmt.Sprintf("segment-%05d%s", d.Index, ext)
}

func extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

// contentType returns the MIME type for a file name based on its extension.
func contentType(name string) string {
	switch path.Ext(name) {
	case ".ts":
		return "video/mp2t"
	case ".mp4":
		return "video/mp4"
	case ".m4s":
		return "video/iso.segment"
	case ".m4a":
		return "audio/mp4"
	case ".aac":
		return "audio/aac"
	case ".vtt":
		return "text/vtt"
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	default:
		return "application/octet-stream"
	}
}
