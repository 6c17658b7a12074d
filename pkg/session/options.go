package session

import (
	"net/http"
	"time"

	"github.com/agleyzer/hlsfetch/pkg/httpclient"
	"github.com/agleyzer/hlsfetch/pkg/selector"
	"github.com/hashicorp/go-hclog"
)

// Option configures a Session.
type Option func(*Session)

// WithFetcher injects the transport. Default is httpclient.HTTPFetcher.
func WithFetcher(f httpclient.Fetcher) Option {
	return func(s *Session) {
		s.fetcher = f
	}
}

// WithSelector replaces the first-listed variant policy.
func WithSelector(sel selector.Selector) Option {
	return func(s *Session) {
		if sel != nil {
			s.selector = sel
		}
	}
}

// WithHeaders sets headers sent with every request. Manifest fetches add
// the HLS Accept header on top.
func WithHeaders(h http.Header) Option {
	return func(s *Session) {
		s.header = h.Clone()
	}
}

// WithTimeout sets the per-request timeout. Non-positive values keep the
// default of 10s.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetry sets the retry policy for transient fetch failures.
func WithRetry(p RetryPolicy) Option {
	return func(s *Session) {
		s.retry = p
	}
}

// WithMaxDuration delivers only a prefix of the media playlist, see
// pipeline.Subset.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Session) {
		s.maxDuration = d
	}
}

// WithLogger sets the parent logger. Default is logging.Logger().
func WithLogger(l hclog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}
