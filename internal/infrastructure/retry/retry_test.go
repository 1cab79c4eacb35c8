package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"rate limit 429", errors.New("HTTP 429 Too Many Requests"), true},
		{"rate limit text", errors.New("rate limit exceeded"), true},
		{"overloaded 529", errors.New("529 overloaded"), true},
		{"service unavailable", errors.New("503 Service Unavailable"), true},
		{"bad gateway", errors.New("502 Bad Gateway"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"auth error", errors.New("401 Unauthorized"), false},
		{"bad request", errors.New("400 Bad Request"), false},
		{"context canceled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("calendar: %w", context.DeadlineExceeded), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDelayGrowsAndCaps(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	for attempt, base := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond} {
		d := p.Delay(attempt)
		low := time.Duration(float64(base) * 0.69)
		high := time.Duration(float64(base) * 1.31)
		if d < low || d > high {
			t.Errorf("Delay(%d) = %v, want within [%v, %v]", attempt, d, low, high)
		}
	}
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDoRetriesTransientUpToThree(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		return errors.New("503 Service Unavailable")
	})
	if err == nil {
		t.Fatal("expected the last error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		return errors.New("400 Bad Request")
	})
	if err == nil || calls != 1 {
		t.Errorf("calls = %d, err = %v; want 1 call and an error", calls, err)
	}
}

func TestDoValueSucceedsAfterTransient(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("429 rate limit")
		}
		return "ok", nil
	})
	if err != nil || v != "ok" || calls != 2 {
		t.Errorf("v=%q err=%v calls=%d", v, err, calls)
	}
}

func TestAttemptsNeverExceedThree(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 10, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	_ = Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return errors.New("503")
	})
	if calls != 3 {
		t.Errorf("calls = %d, want cap of 3", calls)
	}
}
