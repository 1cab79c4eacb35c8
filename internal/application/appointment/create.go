package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/AtRiskMedia/tractcall-go/internal/application/slots"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/metrics"
)

const (
	outcomeBooked    = "booked"
	outcomeInvalid   = "invalid"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
)

// Create books the details currently held in the session's flow.
func (e *Engine) Create(ctx context.Context, sess *session.Session) Reply {
	t, err := e.newTurn(sess, "")
	if err != nil {
		return e.fail(sess, err)
	}
	return e.create(ctx, t)
}

// create is the terminal action. The flow is reset whatever happens, so a
// repeated "yes" can never reach the calendar twice, and the calendar write
// itself is attempted exactly once.
func (e *Engine) create(ctx context.Context, t *turn) Reply {
	details := t.sess.Flow.Details.Clone()
	calendarType := t.sess.Flow.CalendarType
	user := t.sess.UserInfo
	t.sess.Flow.Reset()

	clock, ok := slots.NormalizeClock(details.Time)
	switch {
	case details.Title == "" || details.Date == "":
		ok = false
	case strings.TrimSpace(user.Name) == "" || !session.ValidEmail(user.Email):
		ok = false
	}
	if !ok {
		metrics.BookingsTotal.WithLabelValues(outcomeInvalid).Inc()
		t.log.Warn("Refusing to create incomplete appointment",
			"title", details.Title, "date", details.Date, "time", details.Time)
		return Reply{Text: "I'm sorry, some of the booking details were missing, so I didn't book anything. Would you like to start again?"}
	}
	if clock != details.Time {
		t.log.Debug("Repaired appointment time", "from", details.Time, "to", clock)
		details.Time = clock
	}
	if details.TimeDisplay == "" {
		details.TimeDisplay = slots.FormatClock(clock)
	}

	if e.guard != nil {
		key := strings.Join([]string{t.sess.TenantID, user.Email, details.Date, details.Time}, "|")
		claimed, err := e.guard.Claim(ctx, key, e.guardTTL)
		switch {
		case err != nil:
			t.log.Warn("Booking guard unavailable, continuing", "error", err)
		case !claimed:
			metrics.BookingsTotal.WithLabelValues(outcomeDuplicate).Inc()
			t.log.Info("Duplicate booking attempt suppressed", "date", details.Date, "time", details.Time)
			return Reply{Text: "It looks like that appointment is already being booked for you. You'll get a confirmation email shortly."}
		}
	}

	req := gateways.AppointmentRequest{
		Title:           details.Title,
		Description:     fmt.Sprintf("%s for %s (%s), booked by phone.", details.Title, user.Name, user.Email),
		Date:            details.Date,
		Time:            details.Time,
		DurationMinutes: t.cfg.Hours.DurationMinutes,
		CalendarType:    calendarType,
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	booking, err := e.calendar.CreateAppointment(callCtx, t.sess.TenantID, req, user.Email, user.Name)
	cancel()
	if err != nil {
		metrics.BookingsTotal.WithLabelValues(outcomeFailed).Inc()
		t.log.Error("Appointment creation failed", "error", err, "date", details.Date, "time", details.Time)
		return Reply{Text: "I'm sorry, I wasn't able to book that appointment. Please try again in a moment, or contact us directly and we'll get you scheduled."}
	}

	appt := &session.Appointment{
		CalendarLink: booking.EventLink,
		EventID:      booking.EventID,
		Details:      details,
		BookedAt:     e.now(),
	}
	t.sess.LastAppointment = appt
	metrics.BookingsTotal.WithLabelValues(outcomeBooked).Inc()
	t.log.Info("Appointment booked", "eventId", booking.EventID, "date", details.Date, "time", details.Time)

	text := fmt.Sprintf("You're all set! Your %s is booked for %s at %s. A confirmation will be sent to %s.",
		details.Title, slots.LongDateFromISO(details.Date), details.TimeDisplay, user.Email)
	return Reply{Text: text, Booking: appt}
}
