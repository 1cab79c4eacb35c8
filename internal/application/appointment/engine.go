// Package appointment is the booking state machine. It walks a session's
// appointment flow from calendar selection to creation, re-validating held
// slots whenever the caller corrects a value.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/slots"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
)

// Extractor is the slot extraction surface the engine needs.
type Extractor interface {
	Name(ctx context.Context, text string, recent []session.Message) string
	Email(ctx context.Context, text string, recent []session.Message) string
	Service(ctx context.Context, text string, recent []session.Message, catalog []string) string
}

// TenantSource resolves tenant contexts.
type TenantSource interface {
	Get(tenantID string) (*tenant.Context, error)
}

// Reply is the engine's answer for one turn. Booking is set only when this
// turn created an appointment.
type Reply struct {
	Text    string
	Booking *session.Appointment
}

// Options wires the engine's collaborators.
type Options struct {
	Calendar      gateways.Calendar
	Guard         gateways.BookingGuard // optional
	Extractor     Extractor
	Tenants       TenantSource
	Now           func() time.Time
	Policy        retry.Policy
	CallTimeout   time.Duration
	GuardTTL      time.Duration
	HistoryWindow int
	Logger        *logging.ChanneledLogger
}

type Engine struct {
	calendar      gateways.Calendar
	guard         gateways.BookingGuard
	extractor     Extractor
	tenants       TenantSource
	now           func() time.Time
	policy        retry.Policy
	callTimeout   time.Duration
	guardTTL      time.Duration
	historyWindow int
	logger        *logging.ChanneledLogger
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		calendar:      opts.Calendar,
		guard:         opts.Guard,
		extractor:     opts.Extractor,
		tenants:       opts.Tenants,
		now:           opts.Now,
		policy:        opts.Policy,
		callTimeout:   opts.CallTimeout,
		guardTTL:      opts.GuardTTL,
		historyWindow: opts.HistoryWindow,
		logger:        opts.Logger,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.callTimeout <= 0 {
		e.callTimeout = 10 * time.Second
	}
	if e.guardTTL <= 0 {
		e.guardTTL = 10 * time.Minute
	}
	if e.historyWindow <= 0 {
		e.historyWindow = 10
	}
	if e.logger == nil {
		e.logger = logging.NewDiscard()
	}
	return e
}

// turn carries what every step handler needs.
type turn struct {
	sess *session.Session
	cfg  *tenant.Config
	loc  *time.Location
	now  time.Time
	text string
	log  *slog.Logger
}

func (e *Engine) newTurn(sess *session.Session, text string) (*turn, error) {
	tc, err := e.tenants.Get(sess.TenantID)
	if err != nil {
		return nil, err
	}
	loc := tc.Location()
	return &turn{
		sess: sess,
		cfg:  tc.Config,
		loc:  loc,
		now:  e.now().In(loc),
		text: strings.TrimSpace(text),
		log:  e.logger.WithSession(logging.ChannelAppointment, sess.TenantID, sess.ID),
	}, nil
}

// Start begins a new booking. A service named in the opening request is
// kept as the title.
func (e *Engine) Start(ctx context.Context, sess *session.Session, text string) Reply {
	t, err := e.newTurn(sess, text)
	if err != nil {
		return e.fail(sess, err)
	}

	sess.Flow.Reset()
	if title, ok := slots.MatchService(t.text, t.cfg.Services); ok {
		sess.Flow.Details.Title = title
	}
	step := e.advance(t)
	t.log.Info("Appointment flow started", "step", step, "title", sess.Flow.Details.Title)

	intro := "I'd be happy to help you book an appointment."
	if sess.Flow.Details.Title != "" {
		intro = fmt.Sprintf("I'd be happy to help you book a %s.", sess.Flow.Details.Title)
	}
	return Reply{Text: intro + " " + e.prompt(t)}
}

// Resume re-prompts for the current step after the flow was interrupted,
// for example by identity collection. Values collected meanwhile are taken
// into account.
func (e *Engine) Resume(ctx context.Context, sess *session.Session) Reply {
	t, err := e.newTurn(sess, "")
	if err != nil {
		return e.fail(sess, err)
	}
	e.advance(t)
	return Reply{Text: e.prompt(t)}
}

// Handle processes one utterance in the active flow.
func (e *Engine) Handle(ctx context.Context, sess *session.Session, text string) Reply {
	t, err := e.newTurn(sess, text)
	if err != nil {
		return e.fail(sess, err)
	}

	from := sess.Flow.Step
	var r Reply
	switch from {
	case session.StepSelectCalendar:
		r = e.handleCalendar(t)
	case session.StepCollectName:
		r = e.handleName(ctx, t)
	case session.StepCollectEmail:
		r = e.handleEmail(ctx, t)
	case session.StepCollectTitle:
		r = e.handleTitle(ctx, t)
	case session.StepCollectDate:
		r = e.handleDate(ctx, t)
	case session.StepCollectTime:
		r = e.handleTime(ctx, t)
	case session.StepReview:
		r = e.handleReview(ctx, t)
	case session.StepConfirm:
		r = e.handleConfirm(ctx, t)
	default:
		t.log.Error("Unknown appointment step, resetting flow", "step", from)
		sess.Flow.Reset()
		return Reply{Text: "I'm sorry, I lost track of your booking. Would you like to start a new appointment request?"}
	}

	if to := sess.Flow.Step; to != from {
		t.log.Debug("Appointment step transition", "from", from, "to", to)
	}
	return r
}

// fail resets the flow after a collaborator or configuration error.
func (e *Engine) fail(sess *session.Session, err error) Reply {
	e.logger.WithSession(logging.ChannelAppointment, sess.TenantID, sess.ID).
		Error("Appointment flow error", "error", err)
	sess.Flow.Reset()
	return Reply{Text: "I'm sorry, I'm having trouble with bookings right now. Please try again in a moment or contact us directly."}
}

// advance moves the flow to the first step whose value is still missing.
func (e *Engine) advance(t *turn) session.Step {
	f := &t.sess.Flow
	u := t.sess.UserInfo
	var next session.Step
	switch {
	case u.Name == "":
		next = session.StepCollectName
	case !session.ValidEmail(u.Email):
		next = session.StepCollectEmail
	case f.CalendarType == session.CalendarUnset && t.cfg.PinnedCalendar() != session.CalendarUnset:
		f.CalendarType = t.cfg.PinnedCalendar()
		return e.advance(t)
	case f.CalendarType == session.CalendarUnset:
		next = session.StepSelectCalendar
	case f.Details.Title == "":
		next = session.StepCollectTitle
	case f.Details.Date == "" || len(f.Details.AvailableSlots) == 0:
		next = session.StepCollectDate
	case f.Details.Time == "":
		next = session.StepCollectTime
	default:
		next = e.finalStep(t)
	}
	f.MoveTo(next)
	return next
}

func (e *Engine) finalStep(t *turn) session.Step {
	if t.cfg.FlowVariant == tenant.FlowConfirm {
		return session.StepConfirm
	}
	return session.StepReview
}

func (e *Engine) recent(sess *session.Session) []session.Message {
	return sess.Recent(e.historyWindow)
}

func (e *Engine) handleCalendar(t *turn) Reply {
	lower := strings.ToLower(t.text)
	switch {
	case strings.Contains(lower, "google") || strings.Contains(lower, "gmail"):
		t.sess.Flow.CalendarType = session.CalendarGoogle
	case strings.Contains(lower, "microsoft") || strings.Contains(lower, "outlook") || strings.Contains(lower, "office"):
		t.sess.Flow.CalendarType = session.CalendarMicrosoft
	default:
		return Reply{Text: "Sorry, which calendar should I use, Google or Microsoft?"}
	}
	e.advance(t)
	return Reply{Text: "Great. " + e.prompt(t)}
}

func (e *Engine) handleName(ctx context.Context, t *turn) Reply {
	name := e.extractor.Name(ctx, t.text, e.recent(t.sess))
	if !t.sess.UserInfo.SetName(name) {
		return Reply{Text: "Sorry, I didn't catch your name. Could you say it again, or spell it for me?"}
	}
	e.advance(t)
	return Reply{Text: fmt.Sprintf("Thanks, %s. %s", t.sess.UserInfo.FirstName(), e.prompt(t))}
}

func (e *Engine) handleEmail(ctx context.Context, t *turn) Reply {
	email := e.extractor.Email(ctx, t.text, e.recent(t.sess))
	if !t.sess.UserInfo.SetEmail(email) {
		return Reply{Text: "I couldn't get a valid email address from that. Could you spell it out, like j o h n at gmail dot com?"}
	}
	e.advance(t)
	return Reply{Text: fmt.Sprintf("Got it, %s. %s", t.sess.UserInfo.Email, e.prompt(t))}
}

func (e *Engine) handleTitle(ctx context.Context, t *turn) Reply {
	title := e.extractor.Service(ctx, t.text, e.recent(t.sess), t.cfg.Services)
	t.sess.Flow.Details.Title = title
	e.advance(t)
	return Reply{Text: fmt.Sprintf("A %s, perfect. %s", title, e.prompt(t))}
}

func (e *Engine) handleDate(ctx context.Context, t *turn) Reply {
	date, ok := slots.ParseStrictDate(t.text, t.loc)
	if !ok {
		if term, rel := slots.DetectRelativeDate(t.text); rel {
			return Reply{Text: fmt.Sprintf("To avoid any mix-ups, I need the exact date rather than %q. Please say the month, day, and year, for example %s.", term, exampleDate(t.now))}
		}
		return Reply{Text: fmt.Sprintf("I need the full date with the month, day, and year, for example %s. What date works for you?", exampleDate(t.now))}
	}
	if date.Before(slots.StartOfDay(t.now)) {
		return Reply{Text: fmt.Sprintf("%s has already passed. What upcoming date works for you?", slots.FormatLongDate(date))}
	}

	res, err := e.lookup(ctx, t, date)
	if err != nil {
		return Reply{Text: e.lookupFailure(t, err)}
	}
	t.sess.Flow.Details.SetDate(res.date, res.slots)
	t.sess.Flow.Details.ClearTime()
	e.advance(t)
	return Reply{Text: res.preface + e.prompt(t)}
}

func (e *Engine) handleTime(ctx context.Context, t *turn) Reply {
	d := &t.sess.Flow.Details
	if slots.LooksLikeDate(t.text) {
		d.KeepOnlyTitle()
		t.sess.Flow.MoveTo(session.StepCollectDate)
		t.log.Debug("Time step received a date, redirecting")
		return e.handleDate(ctx, t)
	}

	if slot, ok := slots.MatchTimeSlot(t.text, d.AvailableSlots); ok {
		d.SetTime(slot)
		e.advance(t)
		return Reply{Text: e.prompt(t)}
	}

	return Reply{Text: fmt.Sprintf("Sorry, that time isn't available. On %s I have %s. Which would you like?",
		slots.LongDateFromISO(d.Date), slots.ListSlotDisplays(d.AvailableSlots, maxListedSlots))}
}

func (e *Engine) handleConfirm(ctx context.Context, t *turn) Reply {
	switch {
	case slots.IsConfirmation(t.text):
		return e.create(ctx, t)
	case slots.IsCancellation(t.text):
		t.sess.Flow.Details = session.SlotBag{}
		t.sess.Flow.MoveTo(session.StepCollectTitle)
		return Reply{Text: "No problem, let's start over. " + e.prompt(t)}
	}
	return Reply{Text: "Should I book it? Please say yes to confirm or no to start over."}
}

// lookupResult is an availability answer for a requested date, possibly
// substituted with the next open day.
type lookupResult struct {
	date    string
	slots   []session.Slot
	preface string
}

// noOpeningsError means neither the requested day nor any later day in the
// search horizon has a free slot.
type noOpeningsError struct{ reason string }

func (e *noOpeningsError) Error() string { return "no openings: " + e.reason }

// lookup resolves availability for date. Weekends and fully booked days are
// replaced by the next available business day.
func (e *Engine) lookup(ctx context.Context, t *turn, date time.Time) (lookupResult, error) {
	iso := slots.FormatISO(date)
	long := slots.FormatLongDate(date)

	var reason string
	if slots.IsWeekend(date) {
		reason = fmt.Sprintf("%s falls on a weekend, and we're only open on weekdays.", long)
	} else {
		available, err := e.findSlots(ctx, t.sess.TenantID, iso)
		if err != nil {
			return lookupResult{}, err
		}
		if len(available) > 0 {
			return lookupResult{date: iso, slots: available}, nil
		}
		reason = fmt.Sprintf("There are no openings left on %s.", long)
	}

	next, err := e.findNext(ctx, t.sess.TenantID, iso)
	if errors.Is(err, gateways.ErrNoAvailability) || (err == nil && len(next.AvailableSlots) == 0) {
		return lookupResult{}, &noOpeningsError{reason: reason}
	}
	if err != nil {
		return lookupResult{}, err
	}
	formatted := next.FormattedDate
	if formatted == "" {
		formatted = slots.LongDateFromISO(next.Date)
	}
	return lookupResult{
		date:    next.Date,
		slots:   next.AvailableSlots,
		preface: fmt.Sprintf("%s The next available day is %s. ", reason, formatted),
	}, nil
}

func (e *Engine) lookupFailure(t *turn, err error) string {
	var none *noOpeningsError
	if errors.As(err, &none) {
		return fmt.Sprintf("%s I couldn't find any openings in the %d days after that. Could you try a later date?", none.reason, t.cfg.SearchHorizonDays)
	}
	t.log.Error("Calendar availability lookup failed", "error", err)
	return "I'm having trouble checking the calendar right now. Could you try another date, or call back shortly?"
}

func (e *Engine) findSlots(ctx context.Context, tenantID, date string) ([]session.Slot, error) {
	return retry.DoValue(ctx, e.policy, func(ctx context.Context) ([]session.Slot, error) {
		ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
		return e.calendar.FindAvailableSlots(ctx, tenantID, date)
	})
}

func (e *Engine) findNext(ctx context.Context, tenantID, date string) (gateways.NextAvailable, error) {
	return retry.DoValue(ctx, e.policy, func(ctx context.Context) (gateways.NextAvailable, error) {
		ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
		return e.calendar.FindNextAvailableSlot(ctx, tenantID, date)
	})
}

// exampleDate is the next weekday after now, in the exact spoken format.
func exampleDate(now time.Time) string {
	d := slots.StartOfDay(now).AddDate(0, 0, 1)
	for slots.IsWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("January 2, 2006")
}
