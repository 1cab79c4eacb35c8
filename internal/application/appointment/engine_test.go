package appointment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/extraction"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
)

// Tuesday, October 14, 2025, mid-morning.
var testNow = time.Date(2025, time.October, 14, 10, 0, 0, 0, time.UTC)

type fakeCalendar struct {
	slots     map[string][]session.Slot
	next      map[string]gateways.NextAvailable
	slotsErr  error
	createErr error
	created   []gateways.AppointmentRequest
}

func (f *fakeCalendar) FindAvailableSlots(ctx context.Context, tenantID, date string) ([]session.Slot, error) {
	if f.slotsErr != nil {
		return nil, f.slotsErr
	}
	return f.slots[date], nil
}

func (f *fakeCalendar) FindNextAvailableSlot(ctx context.Context, tenantID, date string) (gateways.NextAvailable, error) {
	if n, ok := f.next[date]; ok {
		return n, nil
	}
	return gateways.NextAvailable{}, gateways.ErrNoAvailability
}

func (f *fakeCalendar) CreateAppointment(ctx context.Context, tenantID string, req gateways.AppointmentRequest, email, name string) (gateways.Booking, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return gateways.Booking{}, f.createErr
	}
	return gateways.Booking{EventID: "evt-1", EventLink: "https://calendar.test/evt-1"}, nil
}

type fakeGuard struct {
	claimed map[string]bool
	err     error
}

func (g *fakeGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

type fakeTenants struct{ cfg *tenant.Config }

func (f fakeTenants) Get(id string) (*tenant.Context, error) {
	return &tenant.Context{TenantID: id, Config: f.cfg}, nil
}

type downCompleter struct{}

func (downCompleter) Name() string { return "down" }

func (downCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("503 Service Unavailable")
}

func daySlots(starts ...string) []session.Slot {
	displays := map[string]string{
		"09:00": "9:00 AM", "10:00": "10:00 AM", "11:00": "11:00 AM",
		"13:00": "1:00 PM", "14:00": "2:00 PM", "14:30": "2:30 PM", "15:00": "3:00 PM",
	}
	out := make([]session.Slot, 0, len(starts))
	for _, s := range starts {
		out = append(out, session.Slot{Start: s, Display: displays[s]})
	}
	return out
}

func newFixture(cfg *tenant.Config) (*Engine, *fakeCalendar, *fakeGuard) {
	if cfg == nil {
		cfg = tenant.DefaultConfig("default")
	}
	cal := &fakeCalendar{
		slots: map[string][]session.Slot{
			"2025-10-16": daySlots("09:00", "10:00", "14:00", "15:00"),
			"2025-10-17": daySlots("09:00", "11:00"),
			"2025-10-20": daySlots("09:00", "10:00", "13:00"),
		},
		next: map[string]gateways.NextAvailable{
			"2025-10-18": {Date: "2025-10-20", FormattedDate: "Monday, October 20, 2025", AvailableSlots: daySlots("09:00", "10:00", "13:00")},
		},
	}
	guard := &fakeGuard{claimed: map[string]bool{}}
	policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	e := NewEngine(Options{
		Calendar:  cal,
		Guard:     guard,
		Extractor: extraction.NewService(downCompleter{}, policy, time.Second, logging.NewDiscard()),
		Tenants:   fakeTenants{cfg: cfg},
		Now:       func() time.Time { return testNow },
		Policy:    policy,
		Logger:    logging.NewDiscard(),
	})
	return e, cal, guard
}

func identifiedSession(step session.Step) *session.Session {
	s := session.New("sess-1", "default", testNow)
	s.UserInfo.SetName("John Smith")
	s.UserInfo.SetEmail("john@example.com")
	s.Flow.CalendarType = session.CalendarGoogle
	s.Flow.Details.Title = "Teeth Cleaning"
	s.Flow.MoveTo(step)
	return s
}

func reviewSession() *session.Session {
	s := identifiedSession(session.StepReview)
	s.Flow.Details.SetDate("2025-10-16", daySlots("09:00", "10:00", "14:00", "15:00"))
	s.Flow.Details.SetTime(session.Slot{Start: "14:00", Display: "2:00 PM"})
	return s
}

func TestStart(t *testing.T) {
	tests := []struct {
		name      string
		identity  bool
		text      string
		wantStep  session.Step
		wantTitle string
	}{
		{"anonymous caller collects name first", false, "I want to book an appointment", session.StepCollectName, ""},
		{"identified caller picks a calendar", true, "I'd like to book a teeth cleaning", session.StepSelectCalendar, "Teeth Cleaning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newFixture(nil)
			s := session.New("sess-1", "default", testNow)
			if tt.identity {
				s.UserInfo.SetName("John Smith")
				s.UserInfo.SetEmail("john@example.com")
			}
			r := e.Start(context.Background(), s, tt.text)
			if r.Text == "" {
				t.Fatal("empty reply")
			}
			if !s.Flow.Active || s.Flow.Step != tt.wantStep {
				t.Errorf("flow = %+v, want active at %s", s.Flow, tt.wantStep)
			}
			if s.Flow.Details.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", s.Flow.Details.Title, tt.wantTitle)
			}
		})
	}
}

func TestPinnedCalendarSkipsSelection(t *testing.T) {
	cfg := tenant.DefaultConfig("default")
	cfg.CalendarType = "microsoft"
	e, _, _ := newFixture(cfg)
	s := session.New("sess-1", "default", testNow)
	s.UserInfo.SetName("John Smith")
	s.UserInfo.SetEmail("john@example.com")

	e.Start(context.Background(), s, "book an appointment")
	if s.Flow.Step != session.StepCollectTitle {
		t.Errorf("step = %s, want COLLECT_TITLE", s.Flow.Step)
	}
	if s.Flow.CalendarType != session.CalendarMicrosoft {
		t.Errorf("calendar = %q, want microsoft", s.Flow.CalendarType)
	}
}

func TestSelectCalendar(t *testing.T) {
	tests := []struct {
		text     string
		want     session.CalendarType
		wantStep session.Step
	}{
		{"google please", session.CalendarGoogle, session.StepCollectDate},
		{"I use outlook", session.CalendarMicrosoft, session.StepCollectDate},
		{"whatever you like", session.CalendarUnset, session.StepSelectCalendar},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			e, _, _ := newFixture(nil)
			s := identifiedSession(session.StepSelectCalendar)
			s.Flow.CalendarType = session.CalendarUnset

			e.Handle(context.Background(), s, tt.text)
			if s.Flow.CalendarType != tt.want || s.Flow.Step != tt.wantStep {
				t.Errorf("calendar=%q step=%s, want %q %s", s.Flow.CalendarType, s.Flow.Step, tt.want, tt.wantStep)
			}
		})
	}
}

func TestCollectDate(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantStep  session.Step
		wantDate  string
		wantReply string
	}{
		{"weekday with slots", "October 16, 2025", session.StepCollectTime, "2025-10-16", "2:00 PM"},
		{"weekend substitutes next business day", "October 18, 2025", session.StepCollectTime, "2025-10-20", "Monday, October 20, 2025"},
		{"relative term rejected", "tomorrow works", session.StepCollectDate, "", "exact date"},
		{"missing year rejected", "October 16", session.StepCollectDate, "", "month, day, and year"},
		{"past date rejected", "October 1, 2025", session.StepCollectDate, "", "already passed"},
		{"fully booked weekday without alternatives", "October 21, 2025", session.StepCollectDate, "", "couldn't find any openings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newFixture(nil)
			s := identifiedSession(session.StepCollectDate)

			r := e.Handle(context.Background(), s, tt.text)
			if s.Flow.Step != tt.wantStep {
				t.Errorf("step = %s, want %s", s.Flow.Step, tt.wantStep)
			}
			if s.Flow.Details.Date != tt.wantDate {
				t.Errorf("date = %q, want %q", s.Flow.Details.Date, tt.wantDate)
			}
			if !strings.Contains(r.Text, tt.wantReply) {
				t.Errorf("reply %q does not mention %q", r.Text, tt.wantReply)
			}
		})
	}
}

func TestCollectDateCalendarError(t *testing.T) {
	e, cal, _ := newFixture(nil)
	cal.slotsErr = errors.New("calendar exploded")
	s := identifiedSession(session.StepCollectDate)

	r := e.Handle(context.Background(), s, "October 16, 2025")
	if s.Flow.Step != session.StepCollectDate {
		t.Errorf("step = %s, want COLLECT_DATE", s.Flow.Step)
	}
	if !strings.Contains(r.Text, "trouble checking the calendar") {
		t.Errorf("reply = %q", r.Text)
	}
}

func TestCollectTime(t *testing.T) {
	t.Run("matching slot advances to review", func(t *testing.T) {
		e, _, _ := newFixture(nil)
		s := identifiedSession(session.StepCollectTime)
		s.Flow.Details.SetDate("2025-10-16", daySlots("09:00", "14:00"))

		r := e.Handle(context.Background(), s, "2 pm please")
		if s.Flow.Step != session.StepReview || s.Flow.Details.Time != "14:00" {
			t.Fatalf("flow = %+v", s.Flow)
		}
		if !strings.Contains(r.Text, "Here's what I have") {
			t.Errorf("reply = %q", r.Text)
		}
	})

	t.Run("unknown time lists options", func(t *testing.T) {
		e, _, _ := newFixture(nil)
		s := identifiedSession(session.StepCollectTime)
		s.Flow.Details.SetDate("2025-10-16", daySlots("09:00", "14:00"))

		r := e.Handle(context.Background(), s, "how about 7 pm")
		if s.Flow.Step != session.StepCollectTime || s.Flow.Details.Time != "" {
			t.Fatalf("flow = %+v", s.Flow)
		}
		if !strings.Contains(r.Text, "9:00 AM") {
			t.Errorf("reply %q should list slots", r.Text)
		}
	})

	t.Run("filler ordinal does not pick a slot", func(t *testing.T) {
		e, _, _ := newFixture(nil)
		s := identifiedSession(session.StepCollectTime)
		s.Flow.Details.SetDate("2025-10-16", daySlots("09:00", "10:00", "14:00"))

		e.Handle(context.Background(), s, "hold on a second")
		if s.Flow.Step != session.StepCollectTime || s.Flow.Details.Time != "" {
			t.Errorf("flow = %+v", s.Flow)
		}
	})

	t.Run("a date redirects to date collection", func(t *testing.T) {
		e, _, _ := newFixture(nil)
		s := identifiedSession(session.StepCollectTime)
		s.Flow.Details.SetDate("2025-10-16", daySlots("09:00", "14:00"))

		e.Handle(context.Background(), s, "actually October 17, 2025")
		if s.Flow.Step != session.StepCollectTime {
			t.Errorf("step = %s, want COLLECT_TIME", s.Flow.Step)
		}
		if s.Flow.Details.Date != "2025-10-17" || s.Flow.Details.Title != "Teeth Cleaning" {
			t.Errorf("details = %+v", s.Flow.Details)
		}
	})
}

func TestCollectTitleFallsBackWhenExtractorIsDown(t *testing.T) {
	e, _, _ := newFixture(nil)
	s := identifiedSession(session.StepCollectTitle)
	s.Flow.Details.Title = ""

	r := e.Handle(context.Background(), s, "um I'm not really sure")
	if s.Flow.Details.Title == "" {
		t.Fatal("title should never be empty after fallback")
	}
	if s.Flow.Step != session.StepCollectDate {
		t.Errorf("step = %s, want COLLECT_DATE", s.Flow.Step)
	}
	if r.Text == "" {
		t.Error("empty reply")
	}
}

func TestCollectTitleSkipsToReviewWhenScheduled(t *testing.T) {
	e, _, _ := newFixture(nil)
	s := reviewSession()
	s.Flow.Details.Title = ""
	s.Flow.MoveTo(session.StepCollectTitle)

	e.Handle(context.Background(), s, "a massage")
	if s.Flow.Step != session.StepReview {
		t.Errorf("step = %s, want REVIEW", s.Flow.Step)
	}
	if s.Flow.Details.Time != "14:00" {
		t.Errorf("time = %q, want preserved 14:00", s.Flow.Details.Time)
	}
}

func TestCollectIdentityInFlow(t *testing.T) {
	t.Run("invalid email leaves state alone", func(t *testing.T) {
		e, _, _ := newFixture(nil)
		s := session.New("sess-1", "default", testNow)
		s.UserInfo.SetName("John Smith")
		s.Flow.MoveTo(session.StepCollectEmail)

		r := e.Handle(context.Background(), s, "it's john at gmail")
		if s.Flow.Step != session.StepCollectEmail || s.UserInfo.Email != "" || s.UserInfo.Collected {
			t.Errorf("flow=%s user=%+v", s.Flow.Step, s.UserInfo)
		}
		if !strings.Contains(r.Text, "spell") {
			t.Errorf("reply = %q", r.Text)
		}
	})

	t.Run("spelled email advances", func(t *testing.T) {
		e, _, _ := newFixture(nil)
		s := session.New("sess-1", "default", testNow)
		s.UserInfo.SetName("John Smith")
		s.Flow.MoveTo(session.StepCollectEmail)

		e.Handle(context.Background(), s, "it's john at gmail dot com")
		if s.UserInfo.Email != "john@gmail.com" || !s.UserInfo.Collected {
			t.Errorf("user = %+v", s.UserInfo)
		}
		if s.Flow.Step != session.StepSelectCalendar {
			t.Errorf("step = %s, want SELECT_CALENDAR", s.Flow.Step)
		}
	})
}

func TestReviewDateChangeInvalidatesTime(t *testing.T) {
	e, _, _ := newFixture(nil)
	s := reviewSession()

	r := e.Handle(context.Background(), s, "actually can we do October 20th instead")
	d := s.Flow.Details
	if d.Date != "2025-10-20" {
		t.Errorf("date = %q, want 2025-10-20", d.Date)
	}
	if d.Time != "" || d.TimeDisplay != "" {
		t.Errorf("time = %q/%q, want cleared", d.Time, d.TimeDisplay)
	}
	if s.Flow.Step != session.StepCollectTime {
		t.Errorf("step = %s, want COLLECT_TIME", s.Flow.Step)
	}
	if !strings.Contains(r.Text, "1:00 PM") {
		t.Errorf("reply %q should list the new date's slots", r.Text)
	}
}

func TestReviewDateChangeKeepsValidTime(t *testing.T) {
	e, cal, _ := newFixture(nil)
	cal.slots["2025-10-20"] = daySlots("09:00", "14:00")
	s := reviewSession()

	r := e.Handle(context.Background(), s, "change the date to October 20, 2025")
	if s.Flow.Step != session.StepReview {
		t.Errorf("step = %s, want REVIEW", s.Flow.Step)
	}
	if s.Flow.Details.Time != "14:00" {
		t.Errorf("time = %q, want 14:00 kept", s.Flow.Details.Time)
	}
	if !strings.Contains(r.Text, "I've updated the date") {
		t.Errorf("reply = %q", r.Text)
	}
}

func TestReviewRouting(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantStep session.Step
	}{
		{"field without value", "the email is wrong", session.StepCollectEmail},
		{"time change request", "I need a different time", session.StepCollectTime},
		{"abandon", "never mind, forget it", session.StepNone},
		{"unclear", "hmm", session.StepReview},
		{"agreeing preamble to time change", "Okay, can you change the time?", session.StepCollectTime},
		{"agreeing preamble to date complaint", "Sure, but the date is wrong", session.StepCollectDate},
		{"agreeing preamble to service change", "Right, I need to change the service", session.StepCollectTitle},
		{"negated correct", "the email is not correct", session.StepCollectEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, cal, _ := newFixture(nil)
			s := reviewSession()

			e.Handle(context.Background(), s, tt.text)
			if s.Flow.Step != tt.wantStep {
				t.Errorf("step = %s, want %s", s.Flow.Step, tt.wantStep)
			}
			if len(cal.created) != 0 {
				t.Error("nothing should be booked")
			}
			if tt.wantStep == session.StepCollectEmail && s.Flow.Details.Time != "14:00" {
				t.Error("unrelated fields should be preserved")
			}
		})
	}
}

func TestCreate(t *testing.T) {
	t.Run("confirmation books and resets", func(t *testing.T) {
		e, cal, _ := newFixture(nil)
		s := reviewSession()

		r := e.Handle(context.Background(), s, "yes, book it")
		if len(cal.created) != 1 {
			t.Fatalf("create calls = %d, want 1", len(cal.created))
		}
		if cal.created[0].CalendarType != session.CalendarGoogle {
			t.Errorf("calendar type = %q, want google", cal.created[0].CalendarType)
		}
		if r.Booking == nil || r.Booking.CalendarLink != "https://calendar.test/evt-1" {
			t.Errorf("booking = %+v", r.Booking)
		}
		if s.Flow.Active || s.Flow.Step != session.StepNone || s.Flow.Details.Title != "" {
			t.Errorf("flow not reset: %+v", s.Flow)
		}
		if s.LastAppointment == nil || s.LastAppointment.Details.Date != "2025-10-16" {
			t.Errorf("last appointment = %+v", s.LastAppointment)
		}
	})

	t.Run("four digit time is repaired", func(t *testing.T) {
		e, cal, _ := newFixture(nil)
		s := reviewSession()
		s.Flow.Details.Time = "1430"
		s.Flow.Details.TimeDisplay = "2:30 PM"

		e.Handle(context.Background(), s, "yes")
		if len(cal.created) != 1 || cal.created[0].Time != "14:30" {
			t.Fatalf("created = %+v, want time 14:30", cal.created)
		}
	})

	t.Run("unrepairable time is refused", func(t *testing.T) {
		e, cal, _ := newFixture(nil)
		s := reviewSession()
		s.Flow.Details.Time = "2pm-ish"

		e.Handle(context.Background(), s, "yes")
		if len(cal.created) != 0 {
			t.Error("invalid booking reached the calendar")
		}
		if s.Flow.Step != session.StepNone {
			t.Errorf("step = %s, want NONE", s.Flow.Step)
		}
	})

	t.Run("calendar failure resets without retry", func(t *testing.T) {
		e, cal, _ := newFixture(nil)
		cal.createErr = errors.New("503 Service Unavailable")
		s := reviewSession()

		r := e.Handle(context.Background(), s, "yes")
		if len(cal.created) != 1 {
			t.Errorf("create calls = %d, want exactly 1", len(cal.created))
		}
		if s.Flow.Step != session.StepNone || s.LastAppointment != nil {
			t.Errorf("flow=%s last=%v", s.Flow.Step, s.LastAppointment)
		}
		if !strings.Contains(r.Text, "contact us directly") {
			t.Errorf("reply = %q", r.Text)
		}
	})

	t.Run("duplicate claim is suppressed", func(t *testing.T) {
		e, cal, guard := newFixture(nil)
		guard.claimed["default|john@example.com|2025-10-16|14:00"] = true
		s := reviewSession()

		e.Handle(context.Background(), s, "yes")
		if len(cal.created) != 0 {
			t.Error("duplicate booking reached the calendar")
		}
	})

	t.Run("direct create books held details once", func(t *testing.T) {
		e, cal, _ := newFixture(nil)
		s := reviewSession()

		first := e.Create(context.Background(), s)
		second := e.Create(context.Background(), s)
		if first.Booking == nil {
			t.Fatalf("first create = %+v", first)
		}
		if second.Booking != nil || len(cal.created) != 1 {
			t.Errorf("second create booked again: calls=%d", len(cal.created))
		}
	})

	t.Run("guard outage does not block booking", func(t *testing.T) {
		e, cal, guard := newFixture(nil)
		guard.err = errors.New("redis down")
		s := reviewSession()

		e.Handle(context.Background(), s, "yes")
		if len(cal.created) != 1 {
			t.Errorf("create calls = %d, want 1", len(cal.created))
		}
	})
}

func TestConfirmVariant(t *testing.T) {
	cfg := tenant.DefaultConfig("default")
	cfg.FlowVariant = tenant.FlowConfirm

	t.Run("time selection lands on confirm", func(t *testing.T) {
		e, _, _ := newFixture(cfg)
		s := identifiedSession(session.StepCollectTime)
		s.Flow.Details.SetDate("2025-10-16", daySlots("09:00", "14:00"))

		e.Handle(context.Background(), s, "9 am")
		if s.Flow.Step != session.StepConfirm {
			t.Errorf("step = %s, want CONFIRM", s.Flow.Step)
		}
	})

	t.Run("cancellation clears details", func(t *testing.T) {
		e, cal, _ := newFixture(cfg)
		s := reviewSession()
		s.Flow.MoveTo(session.StepConfirm)

		e.Handle(context.Background(), s, "no, cancel that")
		if s.Flow.Step != session.StepCollectTitle || s.Flow.Details.Date != "" {
			t.Errorf("flow = %+v", s.Flow)
		}
		if len(cal.created) != 0 {
			t.Error("nothing should be booked")
		}
	})
}

func TestUnknownStepResets(t *testing.T) {
	e, _, _ := newFixture(nil)
	s := reviewSession()
	s.Flow.Step = session.Step("BOGUS")

	r := e.Handle(context.Background(), s, "yes")
	if s.Flow.Active || s.Flow.Step != session.StepNone {
		t.Errorf("flow = %+v", s.Flow)
	}
	if !strings.Contains(r.Text, "sorry") {
		t.Errorf("reply = %q", r.Text)
	}
}
