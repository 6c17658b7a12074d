package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/agleyzer/hlsfetch/pkg/httpclient"
	"github.com/agleyzer/hlsfetch/pkg/pipeline"
	"github.com/agleyzer/hlsfetch/pkg/playlist"
	"github.com/agleyzer/hlsfetch/pkg/selector"
)

// ErrUnexpectedPlaylistKind is matched by UnexpectedKindError.
var ErrUnexpectedPlaylistKind = errors.New("unexpected playlist kind")

// UnexpectedKindError means a variant URI led to a master playlist.
type UnexpectedKindError struct {
	URL  string
	Want playlist.Kind
	Got  playlist.Kind
}

func (e *UnexpectedKindError) Error() string {
	return fmt.Sprintf("%v: %s is a %s playlist, expected %s", ErrUnexpectedPlaylistKind, e.URL, e.Got, e.Want)
}

func (e *UnexpectedKindError) Is(target error) bool { return target == ErrUnexpectedPlaylistKind }

// Class groups errors by what went wrong, for callers that only need to
// tell a server problem from a network problem from a bad manifest.
type Class int

const (
	// ClassUnknown is anything not matched below, and nil
	ClassUnknown Class = iota
	// ClassServer is a non-2xx HTTP response
	ClassServer
	// ClassNetwork is a failure below HTTP, including timeouts
	ClassNetwork
	// ClassManifest is malformed or structurally unexpected manifest text
	ClassManifest
	// ClassSink is the consumer refusing a buffer
	ClassSink
	// ClassCanceled is caller cancellation
	ClassCanceled
)

func (c Class) String() string {
	switch c {
	case ClassServer:
		return "server"
	case ClassNetwork:
		return "network"
	case ClassManifest:
		return "manifest"
	case ClassSink:
		return "sink"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by Run to its Class.
func Classify(err error) Class {
	var (
		netErr       *httpclient.NetworkError
		transportErr *httpclient.TransportError
		parseErr     *playlist.ParseError
		sinkErr      *pipeline.SinkError
	)

	switch {
	case err == nil:
		return ClassUnknown
	case errors.As(err, &sinkErr):
		return ClassSink
	case errors.As(err, &netErr):
		return ClassServer
	case errors.As(err, &transportErr):
		return ClassNetwork
	case errors.As(err, &parseErr),
		errors.Is(err, selector.ErrNoVariants),
		errors.Is(err, ErrUnexpectedPlaylistKind):
		return ClassManifest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	default:
		return ClassUnknown
	}
}
