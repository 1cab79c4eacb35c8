package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
)

type fakeTenants struct{ cfg *tenant.Config }

func (f fakeTenants) Get(id string) (*tenant.Context, error) {
	if id == "missing" {
		return nil, tenant.ErrUnknownTenant
	}
	return &tenant.Context{TenantID: id, Config: f.cfg}, nil
}

type sentMail struct {
	to      []string
	subject string
	html    string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
	// failures > 0 fails the first n sends with err; negative fails every send.
	failures int
}

func (f *fakeSender) Send(to []string, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to, subject, html})
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	if f.failures < 0 {
		return f.err
	}
	return nil
}

var fastRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

func testTenants() fakeTenants {
	cfg := tenant.DefaultConfig("default")
	cfg.BusinessName = "Acme Dental"
	cfg.NotificationEmail = "desk@acme.test"
	return fakeTenants{cfg: cfg}
}

func TestSendSummary(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, testTenants(), fastRetry)
	user := session.UserInfo{Name: "John Smith", Email: "john@example.com", Collected: true}
	history := []session.Message{
		{Role: session.RoleUser, Content: "Book a cleaning"},
		{Role: session.RoleAssistant, Content: "Sure thing."},
	}
	last := &session.Appointment{
		CalendarLink: "https://calendar.google.com/calendar/event?eid=01H",
		Details:      session.SlotBag{Title: "Cleaning", Date: "2025-10-20", Time: "10:00", TimeDisplay: "10:00 AM"},
	}

	if err := svc.SendSummary(context.Background(), "default", user, history, last); err != nil {
		t.Fatalf("SendSummary() error = %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d emails", len(sender.sent))
	}
	m := sender.sent[0]
	if len(m.to) != 2 || m.to[0] != "john@example.com" || m.to[1] != "desk@acme.test" {
		t.Errorf("recipients = %v", m.to)
	}
	if m.subject != "Your call with Acme Dental" {
		t.Errorf("subject = %q", m.subject)
	}
	for _, want := range []string{"Hi John", "Monday, October 20, 2025 at 10:00 AM", "Book a cleaning"} {
		if !strings.Contains(m.html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestSendSummaryErrors(t *testing.T) {
	sender := &fakeSender{}
	tenants := testTenants()
	tenants.cfg.NotificationEmail = ""
	svc := NewService(sender, tenants, fastRetry)

	err := svc.SendSummary(context.Background(), "default", session.UserInfo{Name: "J"}, nil, nil)
	if !errors.Is(err, ErrNoRecipients) {
		t.Errorf("err = %v, want ErrNoRecipients", err)
	}
	err = svc.SendSummary(context.Background(), "missing", session.UserInfo{Email: "a@b.co"}, nil, nil)
	if !errors.Is(err, tenant.ErrUnknownTenant) {
		t.Errorf("err = %v, want ErrUnknownTenant", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d emails on error paths", len(sender.sent))
	}
}

func TestSendSummaryRetriesTransientFailures(t *testing.T) {
	user := session.UserInfo{Name: "John Smith", Email: "john@example.com", Collected: true}
	tests := []struct {
		name      string
		err       error
		failures  int
		wantSends int
		wantErr   bool
	}{
		{"recovers after a rate limit", errors.New("429 Too Many Requests"), 2, 3, false},
		{"gives up after three attempts", errors.New("503 Service Unavailable"), -1, 3, true},
		{"permanent failure is not retried", errors.New("422 invalid recipient"), -1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{err: tt.err, failures: tt.failures}
			svc := NewService(sender, testTenants(), fastRetry)

			err := svc.SendSummary(context.Background(), "default", user, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(sender.sent) != tt.wantSends {
				t.Errorf("sends = %d, want %d", len(sender.sent), tt.wantSends)
			}
		})
	}
}

type blockingNotifier struct {
	release chan struct{}
	calls   chan string
}

func (b *blockingNotifier) SendSummary(ctx context.Context, tenantID string, _ session.UserInfo, _ []session.Message, _ *session.Appointment) error {
	b.calls <- tenantID
	<-b.release
	return nil
}

func TestDispatcherDoesNotBlock(t *testing.T) {
	n := &blockingNotifier{release: make(chan struct{}), calls: make(chan string, 1)}
	d := NewDispatcher(n, time.Second, logging.NewDiscard())

	done := make(chan struct{})
	go func() {
		d.Dispatch(session.Session{ID: "s1", TenantID: "acme"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on delivery")
	}

	if got := <-n.calls; got != "acme" {
		t.Errorf("tenant = %q", got)
	}
	close(n.release)
	d.Wait()
}
