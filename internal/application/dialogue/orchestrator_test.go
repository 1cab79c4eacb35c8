package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/appointment"
	"github.com/AtRiskMedia/tractcall-go/internal/application/extraction"
	"github.com/AtRiskMedia/tractcall-go/internal/application/identity"
	"github.com/AtRiskMedia/tractcall-go/internal/application/intent"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/caching/stores"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
)

var testNow = time.Date(2025, time.October, 14, 10, 0, 0, 0, time.UTC)

type fakeTenants struct{ tc *tenant.Context }

func (f fakeTenants) Get(id string) (*tenant.Context, error) {
	if id == "" {
		id = "default"
	}
	if id != f.tc.TenantID {
		return nil, tenant.ErrUnknownTenant
	}
	return f.tc, nil
}

type fakeCalendar struct {
	mu      sync.Mutex
	created int
}

func (f *fakeCalendar) FindAvailableSlots(ctx context.Context, tenantID, date string) ([]session.Slot, error) {
	return []session.Slot{{Start: "09:00", Display: "9:00 AM"}, {Start: "14:00", Display: "2:00 PM"}}, nil
}

func (f *fakeCalendar) FindNextAvailableSlot(ctx context.Context, tenantID, date string) (gateways.NextAvailable, error) {
	return gateways.NextAvailable{}, gateways.ErrNoAvailability
}

func (f *fakeCalendar) CreateAppointment(ctx context.Context, tenantID string, req gateways.AppointmentRequest, email, name string) (gateways.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return gateways.Booking{EventID: "evt-1", EventLink: "https://calendar.test/evt-1"}, nil
}

type fakeKnowledge struct {
	passages []gateways.Passage
	err      error
	queries  int
}

func (f *fakeKnowledge) Search(ctx context.Context, tenantID, query string) ([]gateways.Passage, error) {
	f.queries++
	return f.passages, f.err
}

type firstPassage struct{}

func (firstPassage) Answer(ctx context.Context, query string, passages []gateways.Passage) (string, error) {
	return passages[0].Text, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []session.Session
}

func (f *fakeDispatcher) Dispatch(s session.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, s)
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixture struct {
	o         *Orchestrator
	store     *stores.SessionsStore
	calendar  *fakeCalendar
	knowledge *fakeKnowledge
	summaries *fakeDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	categories := []intent.Category{
		{
			Name:      "emergency",
			Emergency: true,
			Patterns:  []string{`\bemergency\b`},
			Negations: []string{`\bnot an emergency\b`},
		},
		{
			Name:     "hours",
			Patterns: []string{`\bhours\b`},
			Response: "We're open nine to five, Monday through Friday.",
		},
	}
	cls, err := intent.New(categories)
	if err != nil {
		t.Fatal(err)
	}
	cfg := tenant.DefaultConfig("default")
	cfg.BusinessName = "Acme Dental"
	tenants := fakeTenants{tc: &tenant.Context{TenantID: "default", Config: cfg, Categories: categories, Classifier: cls}}

	now := func() time.Time { return testNow }
	policy := retry.Policy{MaxAttempts: 1}
	logger := logging.NewDiscard()
	ext := extraction.NewService(nil, policy, time.Second, logger)
	cal := &fakeCalendar{}
	store := stores.NewSessionsStore(0, logger)
	store.SetClock(now)

	f := &fixture{
		store:     store,
		calendar:  cal,
		knowledge: &fakeKnowledge{},
		summaries: &fakeDispatcher{},
	}
	f.o, err = NewOrchestrator(Options{
		Store:   store,
		Tenants: tenants,
		Booker: appointment.NewEngine(appointment.Options{
			Calendar:  cal,
			Extractor: ext,
			Tenants:   tenants,
			Now:       now,
			Policy:    policy,
			Logger:    logger,
		}),
		Identity:  identity.NewCollector(ext, 10, now, logger),
		Knowledge: f.knowledge,
		Answerer:  firstPassage{},
		Summaries: f.summaries,
		Now:       now,
		Logger:    logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) say(t *testing.T, sessionID, text string) Response {
	t.Helper()
	resp, err := f.o.HandleUtterance(context.Background(), sessionID, "default", text)
	if err != nil {
		t.Fatalf("HandleUtterance(%q): %v", text, err)
	}
	return resp
}

func (f *fixture) identify(t *testing.T, sessionID string) {
	t.Helper()
	resp := f.say(t, sessionID, "my name is John Smith and my email is john at gmail dot com")
	if resp.Route != RouteIdentity || resp.SideEffects.UserInfo == nil || !resp.SideEffects.UserInfo.Collected {
		t.Fatalf("identification failed: %+v", resp)
	}
}

func TestBookingConversation(t *testing.T) {
	f := newFixture(t)
	f.identify(t, "s1")

	steps := []struct {
		text      string
		wantRoute Route
		wantStep  session.Step
	}{
		{"I'd like to book a teeth cleaning", RouteAppointment, session.StepSelectCalendar},
		{"google", RouteAppointment, session.StepCollectDate},
		{"October 16, 2025", RouteAppointment, session.StepCollectTime},
		{"2 pm", RouteAppointment, session.StepReview},
	}
	for _, st := range steps {
		resp := f.say(t, "s1", st.text)
		snap, _ := f.o.Session("s1")
		if resp.Route != st.wantRoute || snap.Flow.Step != st.wantStep {
			t.Fatalf("%q: route=%s step=%s, want %s %s", st.text, resp.Route, snap.Flow.Step, st.wantRoute, st.wantStep)
		}
	}

	resp := f.say(t, "s1", "yes please")
	if resp.SideEffects.CalendarLink != "https://calendar.test/evt-1" {
		t.Errorf("calendar link = %q", resp.SideEffects.CalendarLink)
	}
	if d := resp.SideEffects.AppointmentDetails; d == nil || d.Date != "2025-10-16" || d.Time != "14:00" {
		t.Errorf("appointment details = %+v", d)
	}
	snap, _ := f.o.Session("s1")
	if snap.Flow.Step != session.StepNone || snap.Flow.Active {
		t.Errorf("flow not reset: %+v", snap.Flow)
	}

	f.say(t, "s1", "thanks, bye")
	f.say(t, "s1", "goodbye")
	if !f.o.CloseSession(context.Background(), "s1") {
		t.Error("CloseSession should report an existing session")
	}
	if n := f.summaries.count(); n != 1 {
		t.Errorf("summaries dispatched = %d, want exactly 1", n)
	}
	if f.calendar.created != 1 {
		t.Errorf("bookings = %d, want 1", f.calendar.created)
	}
}

func TestClosingPhraseInsideConfirmationBooks(t *testing.T) {
	f := newFixture(t)
	f.identify(t, "s1")
	for _, text := range []string{"I'd like to book a teeth cleaning", "google", "October 16, 2025", "2 pm"} {
		f.say(t, "s1", text)
	}
	if snap, _ := f.o.Session("s1"); snap.Flow.Step != session.StepReview {
		t.Fatalf("step = %s, want REVIEW", snap.Flow.Step)
	}

	resp := f.say(t, "s1", "Yes, that's it.")
	if resp.Route == RouteGoodbye {
		t.Fatal("confirmation was treated as a goodbye")
	}
	if f.calendar.created != 1 {
		t.Errorf("bookings = %d, want 1", f.calendar.created)
	}
	if f.summaries.count() != 0 {
		t.Errorf("summaries = %d, want 0 while the call continues", f.summaries.count())
	}
}

func TestGoodbyePreemptsActiveFlow(t *testing.T) {
	f := newFixture(t)
	f.identify(t, "s1")
	f.say(t, "s1", "I want to book an appointment")

	resp := f.say(t, "s1", "actually never mind, bye")
	if resp.Route != RouteGoodbye {
		t.Fatalf("route = %s, want goodbye", resp.Route)
	}
	if !strings.Contains(resp.ResponseText, "Acme Dental") {
		t.Errorf("farewell = %q", resp.ResponseText)
	}
	snap, _ := f.o.Session("s1")
	if snap.Flow.Active {
		t.Error("flow should be closed after goodbye")
	}
	if f.calendar.created != 0 {
		t.Error("nothing should be booked")
	}
}

func TestIdentityGate(t *testing.T) {
	f := newFixture(t)

	resp := f.say(t, "s1", "what are your hours?")
	if resp.Route != RouteIdentity {
		t.Errorf("route = %s, want identity", resp.Route)
	}
	if !strings.Contains(resp.ResponseText, "name") {
		t.Errorf("reply = %q", resp.ResponseText)
	}
	if f.knowledge.queries != 0 {
		t.Error("knowledge should not be consulted before identity")
	}
}

func TestEmergencyBeforeIdentity(t *testing.T) {
	f := newFixture(t)

	resp := f.say(t, "s1", "this is an emergency")
	if resp.Route != RouteEmergency {
		t.Fatalf("route = %s, want emergency", resp.Route)
	}
	if !strings.Contains(resp.ResponseText, "911") {
		t.Errorf("reply = %q", resp.ResponseText)
	}
}

func TestKnowledgeAndFollowUp(t *testing.T) {
	t.Run("category response then decline", func(t *testing.T) {
		f := newFixture(t)
		f.identify(t, "s1")

		resp := f.say(t, "s1", "what are your hours?")
		if resp.Route != RouteKnowledge || !strings.Contains(resp.ResponseText, "nine to five") {
			t.Fatalf("resp = %+v", resp)
		}
		snap, _ := f.o.Session("s1")
		if !snap.AwaitingFollowUp {
			t.Fatal("follow-up flag should be set")
		}

		resp = f.say(t, "s1", "no thanks")
		if resp.Route != RouteGoodbye {
			t.Errorf("route = %s, want goodbye", resp.Route)
		}
		if f.summaries.count() != 1 {
			t.Errorf("summaries = %d, want 1", f.summaries.count())
		}
	})

	t.Run("search answer then more questions", func(t *testing.T) {
		f := newFixture(t)
		f.knowledge.passages = []gateways.Passage{{ID: "p1", Text: "We accept most major insurance plans."}}
		f.identify(t, "s1")

		resp := f.say(t, "s1", "do you take insurance")
		if !strings.Contains(resp.ResponseText, "major insurance plans") || !strings.Contains(resp.ResponseText, followUpQuestion) {
			t.Errorf("reply = %q", resp.ResponseText)
		}

		resp = f.say(t, "s1", "yes")
		if resp.Route != RouteFollowUp {
			t.Errorf("route = %s, want follow_up", resp.Route)
		}
		snap, _ := f.o.Session("s1")
		if snap.AwaitingFollowUp {
			t.Error("follow-up flag should be cleared")
		}
	})

	t.Run("follow-up booking", func(t *testing.T) {
		f := newFixture(t)
		f.identify(t, "s1")
		f.say(t, "s1", "what are your hours?")

		resp := f.say(t, "s1", "great, sign me up")
		if resp.Route != RouteAppointment {
			t.Errorf("route = %s, want appointment", resp.Route)
		}
	})

	t.Run("search outage still answers", func(t *testing.T) {
		f := newFixture(t)
		f.knowledge.err = errors.New("qdrant down")
		f.identify(t, "s1")

		resp := f.say(t, "s1", "do you take insurance")
		if resp.Route != RouteKnowledge || !strings.Contains(resp.ResponseText, "follow up") {
			t.Errorf("resp = %+v", resp)
		}
	})
}

func TestUnknownTenant(t *testing.T) {
	f := newFixture(t)
	if _, err := f.o.HandleUtterance(context.Background(), "s1", "nobody", "hello"); !errors.Is(err, tenant.ErrUnknownTenant) {
		t.Errorf("err = %v, want ErrUnknownTenant", err)
	}
}

func TestCloseSession(t *testing.T) {
	f := newFixture(t)
	if f.o.CloseSession(context.Background(), "missing") {
		t.Error("missing session reported as closed")
	}

	f.identify(t, "s1")
	f.say(t, "s1", "what are your hours?")
	if !f.o.CloseSession(context.Background(), "s1") {
		t.Fatal("CloseSession = false")
	}
	if f.summaries.count() != 1 {
		t.Errorf("summaries = %d, want 1", f.summaries.count())
	}
	if _, ok := f.o.Session("s1"); ok {
		t.Error("session should be gone")
	}
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	f := newFixture(t)
	const turns = 8

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.o.HandleUtterance(context.Background(), "race", "default", "hello there"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	snap, ok := f.o.Session("race")
	if !ok {
		t.Fatal("session missing")
	}
	if len(snap.History) != 2*turns {
		t.Fatalf("history = %d messages, want %d", len(snap.History), 2*turns)
	}
	for i, m := range snap.History {
		want := session.RoleUser
		if i%2 == 1 {
			want = session.RoleAssistant
		}
		if m.Role != want {
			t.Fatalf("message %d role = %s, want %s (interleaved turns)", i, m.Role, want)
		}
	}
}
