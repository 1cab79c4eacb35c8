package appointment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/AtRiskMedia/tractcall-go/internal/application/slots"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
)

// abandonRe is narrower than slots.IsCancellation: in review a bare "no"
// usually precedes a correction, so it must not drop the booking.
var abandonRe = regexp.MustCompile(`(?i)\b(cancel|never mind|nevermind|forget it|start over|don't book|do not book)\b`)

const changeableFields = "the service, date, time, your name, or your email"

// handleReview applies value-bearing corrections first, then field-only
// change requests, then confirmation.
func (e *Engine) handleReview(ctx context.Context, t *turn) Reply {
	if changes := slots.ParseDirectChanges(t.text, t.now); !changes.Empty() {
		return e.applyChanges(ctx, t, changes)
	}

	if field, ok := slots.DetectChangeField(t.text); ok {
		return e.routeToField(t, field)
	}

	if slots.IsConfirmation(t.text) {
		return e.create(ctx, t)
	}

	if abandonRe.MatchString(t.text) {
		t.log.Info("Caller abandoned booking in review")
		t.sess.Flow.Reset()
		return Reply{Text: "Okay, I won't book anything. Is there anything else I can help you with?"}
	}

	return Reply{Text: fmt.Sprintf("Should I book it? Say yes to confirm, or tell me what to change: %s.", changeableFields)}
}

// applyChanges applies every parsed change in one pass. Values are validated
// before anything is mutated so a rejected date leaves the bag untouched.
func (e *Engine) applyChanges(ctx context.Context, t *turn, c slots.DirectChanges) Reply {
	if c.Date == nil && c.RelativeDate != "" {
		return Reply{Text: fmt.Sprintf("To avoid any mix-ups, I need the exact date rather than %q, for example %s. What date would you like?", c.RelativeDate, exampleDate(t.now))}
	}

	var lookup *lookupResult
	if c.Date != nil {
		if c.Date.Date.Before(slots.StartOfDay(t.now)) {
			return Reply{Text: fmt.Sprintf("%s has already passed. What upcoming date would you like instead?", slots.FormatLongDate(c.Date.Date))}
		}
		res, err := e.lookup(ctx, t, c.Date.Date)
		if err != nil {
			return Reply{Text: e.lookupFailure(t, err)}
		}
		lookup = &res
	}

	d := &t.sess.Flow.Details
	var applied []string
	var preface string
	timeLost := false

	if c.TitleText != "" {
		d.Title = e.extractor.Service(ctx, c.TitleText, e.recent(t.sess), t.cfg.Services)
		applied = append(applied, "the service to "+d.Title)
	}

	if lookup != nil {
		hadTime := d.Time != ""
		kept := d.SetDate(lookup.date, lookup.slots)
		timeLost = hadTime && !kept
		preface = lookup.preface
		applied = append(applied, "the date to "+slots.LongDateFromISO(d.Date))
	}

	if c.TimeText != "" {
		if slot, ok := slots.MatchTimeSlot(c.TimeText, d.AvailableSlots); ok {
			d.SetTime(slot)
			timeLost = false
			applied = append(applied, "the time to "+slot.Display)
		} else {
			d.ClearTime()
			timeLost = true
		}
	}

	if c.Name != "" && t.sess.UserInfo.SetName(c.Name) {
		applied = append(applied, "your name to "+t.sess.UserInfo.Name)
	}

	emailRejected := false
	if c.Email != "" {
		if t.sess.UserInfo.SetEmail(c.Email) {
			applied = append(applied, "your email to "+t.sess.UserInfo.Email)
		} else {
			emailRejected = true
		}
	}

	t.log.Debug("Applied review changes", "fields", c.Fields(), "timeLost", timeLost)

	var b strings.Builder
	if len(applied) > 0 {
		b.WriteString("I've updated " + joinChanges(applied) + ". ")
	}
	b.WriteString(preface)
	if emailRejected {
		b.WriteString("That email address didn't look right, so I kept the one I had. ")
	}

	if timeLost || d.Time == "" {
		t.sess.Flow.MoveTo(session.StepCollectTime)
		if c.TimeText != "" && d.Time == "" {
			b.WriteString("That time isn't available. ")
		}
		b.WriteString(e.prompt(t))
		return Reply{Text: b.String()}
	}

	e.advance(t)
	b.WriteString(e.prompt(t))
	return Reply{Text: b.String()}
}

// routeToField sends the caller back to one collection step and keeps every
// other value.
func (e *Engine) routeToField(t *turn, field slots.Field) Reply {
	d := &t.sess.Flow.Details
	var step session.Step
	switch field {
	case slots.FieldTitle:
		d.Title = ""
		step = session.StepCollectTitle
	case slots.FieldDate:
		step = session.StepCollectDate
	case slots.FieldTime:
		d.ClearTime()
		step = session.StepCollectTime
	case slots.FieldName:
		step = session.StepCollectName
	case slots.FieldEmail:
		step = session.StepCollectEmail
	default:
		return Reply{Text: fmt.Sprintf("What would you like to change? You can change %s.", changeableFields)}
	}
	t.sess.Flow.MoveTo(step)
	t.log.Debug("Routing review change to field", "field", field)

	switch step {
	case session.StepCollectName:
		return Reply{Text: "Sure. What name should I put on the booking?"}
	case session.StepCollectEmail:
		return Reply{Text: "Sure. What email address should I use?"}
	}
	return Reply{Text: "Sure. " + e.prompt(t)}
}

func joinChanges(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
