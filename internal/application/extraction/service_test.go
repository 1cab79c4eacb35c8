package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/slots"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestPrimaryValueWins(t *testing.T) {
	c := &fakeCompleter{reply: `{"value": "Jonathan Smith"}`}
	s := NewService(c, testPolicy(), time.Second, logging.NewDiscard())
	if got := s.Name(context.Background(), "it's jon", nil); got != "Jonathan Smith" {
		t.Errorf("Name = %q", got)
	}
}

func TestTransientFailureRetriesThenFallsBack(t *testing.T) {
	c := &fakeCompleter{err: errors.New("503 Service Unavailable")}
	s := NewService(c, testPolicy(), time.Second, logging.NewDiscard())

	got := s.Email(context.Background(), "it's john at gmail dot com", nil)
	if got != "john@gmail.com" {
		t.Errorf("Email = %q, want fallback john@gmail.com", got)
	}
	if c.calls != 3 {
		t.Errorf("primary calls = %d, want 3", c.calls)
	}
}

func TestInvalidPrimaryEmailIsRejected(t *testing.T) {
	c := &fakeCompleter{reply: `{"value": "john at gmail"}`}
	s := NewService(c, testPolicy(), time.Second, logging.NewDiscard())
	if got := s.Email(context.Background(), "john at gmail", nil); got != "" {
		t.Errorf("Email = %q, want empty", got)
	}
}

func TestServiceFallbackNeverEmpty(t *testing.T) {
	tests := []struct {
		name string
		c    *fakeCompleter
	}{
		{"backend down", &fakeCompleter{err: errors.New("connection refused")}},
		{"backend unsure", &fakeCompleter{reply: `{"value": null}`}},
		{"backend garbage", &fakeCompleter{reply: "no idea"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(tt.c, testPolicy(), time.Second, logging.NewDiscard())
			if got := s.Service(context.Background(), "hmm, something", nil, nil); got != slots.DefaultServiceLabel {
				t.Errorf("Service = %q, want default label", got)
			}
		})
	}
}

func TestNoCompleterUsesFallbacks(t *testing.T) {
	s := NewService(nil, testPolicy(), time.Second, logging.NewDiscard())
	if got := s.Name(context.Background(), "my name is Ada Lovelace", nil); got != "Ada Lovelace" {
		t.Errorf("Name = %q", got)
	}
	if got := s.Name(context.Background(), "uh hello", nil); got != "" {
		t.Errorf("Name = %q, want empty", got)
	}
	if got := s.Service(context.Background(), "I need a massage", nil, nil); got != "Massage" {
		t.Errorf("Service = %q", got)
	}
}
