package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/extraction"
	"github.com/AtRiskMedia/tractcall-go/internal/application/intent"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
)

var testNow = time.Date(2025, time.October, 14, 10, 0, 0, 0, time.UTC)

func newCollector(t *testing.T) (*Collector, *intent.Classifier) {
	t.Helper()
	ext := extraction.NewService(nil, retry.Policy{MaxAttempts: 1}, time.Second, logging.NewDiscard())
	cls, err := intent.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewCollector(ext, 10, func() time.Time { return testNow }, logging.NewDiscard()), cls
}

// turn appends the utterance the way the orchestrator does before routing.
func turn(c *Collector, cls *intent.Classifier, s *session.Session, text string) Reply {
	s.Append(session.RoleUser, text, testNow)
	r := c.Handle(context.Background(), s, text, cls.Classify(text))
	s.Append(session.RoleAssistant, r.Text, testNow)
	return r
}

func TestCollectSequentially(t *testing.T) {
	c, cls := newCollector(t)
	s := session.New("s1", "default", testNow)

	r := turn(c, cls, s, "hello?")
	if s.UserInfo.Name != "" || !strings.Contains(r.Text, "full name") {
		t.Fatalf("first turn: user=%+v reply=%q", s.UserInfo, r.Text)
	}

	r = turn(c, cls, s, "my name is John Smith")
	if s.UserInfo.Name != "John Smith" {
		t.Fatalf("name = %q", s.UserInfo.Name)
	}
	if !strings.Contains(r.Text, "email") {
		t.Errorf("reply %q should ask for email", r.Text)
	}

	r = turn(c, cls, s, "it's john at gmail")
	if s.UserInfo.Email != "" || s.UserInfo.Collected {
		t.Fatalf("invalid email accepted: %+v", s.UserInfo)
	}
	if !strings.Contains(r.Text, "spell") {
		t.Errorf("reply = %q", r.Text)
	}

	turn(c, cls, s, "j-o-h-n at g-m-a-i-l dot com")
	if s.UserInfo.Email != "john@gmail.com" || !s.UserInfo.Collected {
		t.Errorf("user = %+v", s.UserInfo)
	}
	if s.UserInfo.Name != "John Smith" {
		t.Errorf("name changed to %q", s.UserInfo.Name)
	}
}

func TestCollectBothInOneUtterance(t *testing.T) {
	c, cls := newCollector(t)
	s := session.New("s1", "default", testNow)

	r := turn(c, cls, s, "my name is John Smith and my email is john at gmail dot com")
	if !s.UserInfo.Collected {
		t.Fatalf("user = %+v", s.UserInfo)
	}
	if s.UserInfo.Name != "John Smith" || s.UserInfo.Email != "john@gmail.com" {
		t.Errorf("user = %+v", s.UserInfo)
	}
	if !strings.Contains(r.Text, "How can I help") {
		t.Errorf("reply = %q", r.Text)
	}
}

func TestCorrectionWhileCollecting(t *testing.T) {
	c, cls := newCollector(t)
	s := session.New("s1", "default", testNow)
	turn(c, cls, s, "my name is Jon")

	turn(c, cls, s, "no wait, my name is actually John Smith")
	if s.UserInfo.Name != "John Smith" {
		t.Errorf("name = %q, want the last one mentioned", s.UserInfo.Name)
	}
}

func TestChangeAfterCollection(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantName  string
		wantEmail string
		wantReply string
	}{
		{"name with value", "please change my name to Jon Smyth", "Jon Smyth", "john@example.com", "updated your name"},
		{"name without value", "my name is wrong", "", "john@example.com", "What name"},
		{"email with value", "update my email to jon at example dot org", "John Smith", "jon@example.org", "updated your email"},
		{"email without value", "I need to change my email", "John Smith", "", "What email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, cls := newCollector(t)
			s := session.New("s1", "default", testNow)
			s.UserInfo.SetName("John Smith")
			s.UserInfo.SetEmail("john@example.com")

			r := turn(c, cls, s, tt.text)
			if s.UserInfo.Name != tt.wantName || s.UserInfo.Email != tt.wantEmail {
				t.Errorf("user = %+v, want %q %q", s.UserInfo, tt.wantName, tt.wantEmail)
			}
			if !strings.Contains(r.Text, tt.wantReply) {
				t.Errorf("reply %q does not contain %q", r.Text, tt.wantReply)
			}
			wantCollected := tt.wantName != "" && tt.wantEmail != ""
			if s.UserInfo.Collected != wantCollected {
				t.Errorf("collected = %v, want %v", s.UserInfo.Collected, wantCollected)
			}
		})
	}
}
