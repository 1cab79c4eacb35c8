// Package retry bounds transient-failure retries for collaborator calls.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/AtRiskMedia/tractcall-go/pkg/config"
)

const jitterPercent = 30 // ±30% jitter

// Policy configures exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy reads the central config; attempts are capped at 3.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: config.RetryMaxAttempts,
		BaseDelay:   config.RetryBaseDelay,
		MaxDelay:    config.RetryMaxDelay,
	}.normalized()
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 || p.MaxAttempts > 3 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// IsRetryable reports whether err looks transient: rate limiting, an
// overloaded or failing upstream, or a network hiccup.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") {
		return true
	}
	if strings.Contains(msg, "529") || strings.Contains(msg, "overloaded") {
		return true
	}
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") ||
		strings.Contains(msg, "unavailable")
}

// Delay returns the backoff before retry attempt n (0-indexed) with jitter.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	delay := p.BaseDelay
	for range attempt {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	span := int64(delay) * jitterPercent * 2 / 100
	if span <= 0 {
		return delay
	}
	jitter := time.Duration(rand.Int64N(span)) - time.Duration(int64(delay)*jitterPercent/100)
	return delay + jitter
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. It returns the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for functions that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == p.MaxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, p.Delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
