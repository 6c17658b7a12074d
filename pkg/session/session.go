// Package session resolves an HLS manifest tree from a root URL and delivers
// the segments of one rendition to a sink.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/agleyzer/hlsfetch/internal/metrics"
	"github.com/agleyzer/hlsfetch/internal/tracing"
	"github.com/agleyzer/hlsfetch/pkg/httpclient"
	"github.com/agleyzer/hlsfetch/pkg/logging"
	"github.com/agleyzer/hlsfetch/pkg/pipeline"
	"github.com/agleyzer/hlsfetch/pkg/playlist"
	"github.com/agleyzer/hlsfetch/pkg/selector"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// State is a step of the resolution state machine.
type State int

const (
	// StateUnresolved is a session that has not fetched anything yet
	StateUnresolved State = iota
	// StateMasterOrMediaFetched means the root manifest was fetched and parsed
	StateMasterOrMediaFetched
	// StateMediaResolved means a variant's media playlist was fetched from a master
	StateMediaResolved
	// StateSegmentsDelivered is the terminal success state
	StateSegmentsDelivered
	// StateFailed is the terminal failure state
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "Unresolved"
	case StateMasterOrMediaFetched:
		return "MasterOrMediaFetched"
	case StateMediaResolved:
		return "MediaResolved"
	case StateSegmentsDelivered:
		return "SegmentsDelivered"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrSessionUsed is returned by Run on a session that already ran.
var ErrSessionUsed = errors.New("session already used")

// ErrNilSink is returned by Run when no sink is given.
var ErrNilSink = errors.New("session: nil sink")

// Session resolves one manifest tree. It is not reusable.
type Session struct {
	id          string
	baseURL     string
	fetcher     httpclient.Fetcher
	selector    selector.Selector
	header      http.Header
	timeout     time.Duration
	retry       RetryPolicy
	maxDuration time.Duration
	logger      hclog.Logger

	mu      sync.RWMutex
	started bool
	stats   Stats
}

// New creates a session for an absolute manifest URL.
func New(rootURL string, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		baseURL:  rootURL,
		selector: selector.First{},
		timeout:  httpclient.DefaultTimeout,
		retry:    DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.fetcher == nil {
		s.fetcher = httpclient.NewHTTPFetcher(nil)
	}
	if s.logger == nil {
		s.logger = logging.Logger()
	}
	s.logger = s.logger.Named("session").With("session", s.id)

	s.stats = Stats{
		ID:          s.id,
		State:       StateUnresolved,
		ManifestURL: rootURL,
	}
	return s
}

// ID returns the session identifier used in logs and stats.
func (s *Session) ID() string {
	return s.id
}

// BaseURL returns the root manifest URL.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.State
}

// Stats returns a snapshot of the session progress.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Run fetches the root manifest, resolves a media playlist and delivers its
// segments to sink. The returned error is the failing component's error.
func (s *Session) Run(ctx context.Context, sink pipeline.ByteSink) (err error) {
	if sink == nil {
		return ErrNilSink
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSessionUsed
	}
	s.started = true
	s.stats.StartedAt = timestamp()
	s.mu.Unlock()

	span, ctx := tracing.StartSpan(ctx, "hls.session")
	span.SetTag("session.id", s.id)
	span.SetTag("manifest.url", s.baseURL)

	metrics.SessionStarted()
	start := time.Now()

	defer func() {
		result := "delivered"
		if err != nil {
			result = "failed"
			s.fail(err)
			s.logger.Error("session failed", "error", err, "class", Classify(err).String())
		} else {
			st := s.Stats()
			s.logger.Info("session complete",
				"segments", st.SegmentsDelivered,
				"bytes", st.BytesDelivered,
				"retries", st.Retries,
				"duration", time.Since(start),
			)
		}
		metrics.SessionFinished(result)
		tracing.Finish(span, err)
	}()

	s.logger.Info("fetching root manifest", "url", s.baseURL)

	root, err := s.fetchPlaylist(ctx, s.baseURL, metrics.StageManifest)
	if err != nil {
		return err
	}
	s.setState(StateMasterOrMediaFetched)

	var media *playlist.Media
	segmentBase := pipeline.BaseOf(s.baseURL)

	switch root.Kind {
	case playlist.KindMedia:
		s.logger.Info("root manifest is a media playlist", "segments", len(root.Media.Segments))
		media = root.Media

	case playlist.KindMaster:
		s.logger.Info("root manifest is a master playlist", "variants", len(root.Master.Variants))

		media, segmentBase, err = s.resolveMaster(ctx, root.Master)
		if err != nil {
			return err
		}
		s.setState(StateMediaResolved)
	}

	if s.maxDuration > 0 {
		limited := pipeline.Subset(media.Segments, s.maxDuration)
		s.logger.Info("applied max duration",
			"originalSegments", len(media.Segments),
			"includedSegments", len(limited),
			"duration", s.maxDuration,
		)
		media = &playlist.Media{
			Version:        media.Version,
			TargetDuration: media.TargetDuration,
			Segments:       limited,
			Ended:          media.Ended,
		}
	}

	s.mu.Lock()
	s.stats.SegmentsTotal = len(media.Segments)
	s.mu.Unlock()

	p := pipeline.New(s.fetchSegment, s.logger.Named("pipeline"))

	pipeSpan, pipeCtx := tracing.StartSpan(ctx, "hls.segments")
	err = p.Run(pipeCtx, media, segmentBase, &countingSink{session: s, next: sink})
	tracing.Finish(pipeSpan, err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.stats.State = StateSegmentsDelivered
	s.stats.FinishedAt = timestamp()
	s.mu.Unlock()
	return nil
}

// resolveMaster selects a variant and fetches its media playlist. It returns
// the media playlist and the base its segment URIs resolve against.
func (s *Session) resolveMaster(ctx context.Context, master *playlist.Master) (*playlist.Media, string, error) {
	v, err := s.selector.Select(master.Variants)
	if err != nil {
		return nil, "", err
	}

	mediaURL := pipeline.ResolveURI(pipeline.BaseOf(s.baseURL), v.URI)

	s.logger.Info("selected variant",
		"uri", v.URI,
		"bandwidth", v.Bandwidth,
		"resolution", v.Resolution,
		"url", mediaURL,
	)

	s.mu.Lock()
	s.stats.MediaURL = mediaURL
	selected := v
	s.stats.Variant = &selected
	s.mu.Unlock()

	pl, err := s.fetchPlaylist(ctx, mediaURL, metrics.StageMediaPlaylist)
	if err != nil {
		return nil, "", err
	}
	if pl.Kind != playlist.KindMedia {
		return nil, "", &UnexpectedKindError{URL: mediaURL, Want: playlist.KindMedia, Got: pl.Kind}
	}

	s.logger.Info("parsed media playlist",
		"segments", len(pl.Media.Segments),
		"targetDuration", pl.Media.TargetDuration,
	)

	// Segment URIs are relative to the media playlist, not the master
	return pl.Media, pipeline.BaseOf(mediaURL), nil
}

// fetchPlaylist fetches manifest text with the HLS Accept header and parses it.
func (s *Session) fetchPlaylist(ctx context.Context, url, stage string) (*playlist.Playlist, error) {
	span, ctx := tracing.StartSpan(ctx, "hls.fetch."+stage)
	span.SetTag("http.url", url)

	header := s.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", httpclient.MPEGURLContentType)

	var text string
	err := s.withRetry(ctx, stage, func() error {
		resp, err := s.get(ctx, url, header, httpclient.BodyText, stage)
		if err != nil {
			return err
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		tracing.Finish(span, err)
		return nil, err
	}

	pl, err := playlist.Parse(text)
	tracing.Finish(span, err)
	if err != nil {
		return nil, err
	}
	return pl, nil
}

// fetchSegment is the pipeline's fetch capability.
func (s *Session) fetchSegment(ctx context.Context, kind pipeline.Kind, url string) ([]byte, error) {
	stage := metrics.StageSegment
	if kind == pipeline.KindInit {
		stage = metrics.StageInit
	}

	var data []byte
	err := s.withRetry(ctx, stage, func() error {
		resp, err := s.get(ctx, url, s.header, httpclient.BodyBytes, stage)
		if err != nil {
			return err
		}
		data = resp.Bytes
		return nil
	})
	return data, err
}

// get performs one attempt on a fresh client owned by this call.
func (s *Session) get(ctx context.Context, url string, header http.Header, mode httpclient.BodyMode, stage string) (*httpclient.Response, error) {
	client := httpclient.New(s.fetcher)
	client.Configure(url, header, s.timeout)

	start := time.Now()
	resp, err := client.Get(ctx, mode)
	metrics.RecordFetch(stage, outcome(err), time.Since(start).Seconds())

	if err != nil {
		s.logger.Debug("fetch failed", "stage", stage, "url", url, "error", err)
		return nil, err
	}
	s.logger.Debug("fetched", "stage", stage, "url", url, "status", resp.StatusCode)
	return resp, nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.State = state
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.State = StateFailed
	s.stats.Err = err.Error()
	s.stats.FinishedAt = timestamp()
}

func outcome(err error) string {
	var netErr *httpclient.NetworkError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &netErr):
		return metrics.OutcomeHTTPError
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeTransport
	}
}
