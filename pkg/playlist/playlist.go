// Package playlist provides HLS playlist parsing functionality.
package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/agleyzer/hlsfetch/pkg/segment"
	"github.com/agleyzer/hlsfetch/pkg/variant"
	"github.com/grafov/m3u8"
)

// Kind tells which of the two playlist shapes a Playlist holds.
type Kind int

const (
	// KindMaster is a multi-rendition playlist listing variants.
	KindMaster Kind = iota + 1
	// KindMedia is a single-rendition playlist listing segments.
	KindMedia
)

func (k Kind) String() string {
	switch k {
	case KindMaster:
		return "master"
	case KindMedia:
		return "media"
	default:
		return "unknown"
	}
}

// Playlist is a parsed manifest. Exactly one of Master or Media is set,
// matching Kind.
type Playlist struct {
	Kind   Kind
	Master *Master
	Media  *Media
}

// Master holds the variants of a master playlist in source order.
type Master struct {
	Variants []variant.Variant
}

// Media holds the segments of a media playlist in source order.
type Media struct {
	// Version is the EXT-X-VERSION value, 0 when absent
	Version int

	// TargetDuration is the EXT-X-TARGETDURATION value in seconds
	TargetDuration int

	// Segments may be empty
	Segments []segment.Segment

	// Ended is true when the playlist carries EXT-X-ENDLIST
	Ended bool
}

// ErrUnrecognized is matched by a ParseError for text that has neither
// master nor media structure.
var ErrUnrecognized = errors.New("no master or media tags found")

// ParseError reports malformed or unrecognized manifest text.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse playlist: %s: %v", e.Reason, e.Err)
	}
	return "parse playlist: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	masterTags = []string{
		"#EXT-X-STREAM-INF",
		"#EXT-X-I-FRAME-STREAM-INF",
		"#EXT-X-MEDIA:",
		"#EXT-X-SESSION-DATA",
		"#EXT-X-SESSION-KEY",
	}
	mediaTags = []string{
		"#EXTINF",
		"#EXT-X-TARGETDURATION",
		"#EXT-X-MEDIA-SEQUENCE",
		"#EXT-X-DISCONTINUITY",
		"#EXT-X-ENDLIST",
		"#EXT-X-PLAYLIST-TYPE",
		"#EXT-X-MAP",
		"#EXT-X-BYTERANGE",
		"#EXT-X-I-FRAMES-ONLY",
		"#EXT-X-PROGRAM-DATE-TIME",
	}
)

// Parse decodes manifest text into a master or media playlist.
// It performs no I/O.
func Parse(text string) (*Playlist, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))

	if !strings.HasPrefix(text, "#EXTM3U") {
		return nil, &ParseError{Reason: "missing #EXTM3U header"}
	}

	kind, err := classify(text)
	if err != nil {
		return nil, err
	}

	// Attribute decoding is left to the m3u8 library
	decoded, listType, err := m3u8.DecodeFrom(strings.NewReader(text+"\n"), true)
	if err != nil {
		return nil, &ParseError{Reason: "decode " + kind.String() + " playlist", Err: err}
	}

	switch {
	case kind == KindMaster && listType == m3u8.MASTER:
		return masterFrom(decoded)
	case kind == KindMedia && listType == m3u8.MEDIA:
		return mediaFrom(decoded)
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("tags indicate a %s playlist but decoder disagrees", kind)}
	}
}

// classify scans tags to decide the playlist kind without decoding values.
func classify(text string) (Kind, error) {
	var sawMaster, sawMedia bool

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "#EXT") {
			continue
		}
		if hasAnyPrefix(line, masterTags) {
			sawMaster = true
		}
		if hasAnyPrefix(line, mediaTags) {
			sawMedia = true
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, &ParseError{Reason: "scan lines", Err: err}
	}

	switch {
	case sawMaster && sawMedia:
		return 0, &ParseError{Reason: "mixed master and media tags"}
	case sawMaster:
		return KindMaster, nil
	case sawMedia:
		return KindMedia, nil
	default:
		return 0, &ParseError{Reason: "unrecognized playlist", Err: ErrUnrecognized}
	}
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func masterFrom(decoded m3u8.Playlist) (*Playlist, error) {
	masterPlaylist, ok := decoded.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, &ParseError{Reason: "unexpected playlist type"}
	}

	variants := make([]variant.Variant, 0, len(masterPlaylist.Variants))
	for _, v := range masterPlaylist.Variants {
		// I-frame streams are trick-play indexes, not renditions
		if v == nil || v.Iframe {
			continue
		}
		variants = append(variants, variant.Variant{
			URI:              v.URI,
			Bandwidth:        int(v.Bandwidth),
			AverageBandwidth: int(v.AverageBandwidth),
			Resolution:       v.Resolution,
			Codecs:           v.Codecs,
			FrameRate:        v.FrameRate,
		})
	}

	return &Playlist{
		Kind:   KindMaster,
		Master: &Master{Variants: variants},
	}, nil
}

func mediaFrom(decoded m3u8.Playlist) (*Playlist, error) {
	mediaPlaylist, ok := decoded.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, &ParseError{Reason: "unexpected playlist type"}
	}

	// EXT-X-MAP applies to every following segment until the next one
	var current *segment.InitSegmentRef
	if m := mediaPlaylist.Map; m != nil {
		current = &segment.InitSegmentRef{URI: m.URI, Length: m.Limit, Offset: m.Offset}
	}

	var segments []segment.Segment
	for i, seg := range mediaPlaylist.Segments {
		if seg == nil {
			break
		}

		if seg.Map != nil {
			current = &segment.InitSegmentRef{
				URI:    seg.Map.URI,
				Length: seg.Map.Limit,
				Offset: seg.Map.Offset,
			}
		}

		segments = append(segments, segment.Segment{
			URI:      seg.URI,
			Duration: seg.Duration,
			Sequence: i,
			InitMap:  current,
		})
	}

	return &Playlist{
		Kind: KindMedia,
		Media: &Media{
			Version:        int(mediaPlaylist.Version()),
			TargetDuration: int(mediaPlaylist.TargetDuration),
			Segments:       segments,
			Ended:          mediaPlaylist.Closed,
		},
	}, nil
}
