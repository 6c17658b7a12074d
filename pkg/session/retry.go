package session

import (
	"context"
	"errors"
	"time"

	"github.com/agleyzer/hlsfetch/internal/metrics"
	"github.com/agleyzer/hlsfetch/pkg/httpclient"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the exponential backoff applied to transient failures.
type RetryPolicy struct {
	// MaxAttempts counts the first try; 1 disables retries
	MaxAttempts int

	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy is 3 attempts starting at 250ms, doubling up to 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

// NoRetry makes every failure final.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	// The attempt count is the only bound
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Retryable reports whether err is an HTTP status or transport failure.
func Retryable(err error) bool {
	var netErr *httpclient.NetworkError
	var transportErr *httpclient.TransportError
	return errors.As(err, &netErr) || errors.As(err, &transportErr)
}

// withRetry runs op until it succeeds, fails permanently or the policy is
// exhausted. The last error is returned unchanged.
func (s *Session) withRetry(ctx context.Context, stage string, op func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op()
		if err == nil || Retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		metrics.RecordRetry(stage)
		s.mu.Lock()
		s.stats.Retries++
		s.mu.Unlock()
		s.logger.Warn("fetch failed, retrying",
			"stage", stage,
			"attempt", attempt,
			"maxAttempts", s.retry.MaxAttempts,
			"wait", wait,
			"error", err,
		)
	}

	return backoff.RetryNotify(operation, s.retry.backOff(ctx), notify)
}
