package appointment

import (
	"fmt"

	"github.com/AtRiskMedia/tractcall-go/internal/application/slots"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
)

const maxListedSlots = 6

// prompt asks for whatever the current step collects.
func (e *Engine) prompt(t *turn) string {
	d := t.sess.Flow.Details
	switch t.sess.Flow.Step {
	case session.StepCollectName:
		return "May I have your full name?"
	case session.StepCollectEmail:
		return "What's the best email address for your confirmation?"
	case session.StepSelectCalendar:
		return "Which calendar should I add this to, Google or Microsoft?"
	case session.StepCollectTitle:
		return "What kind of appointment would you like to book?"
	case session.StepCollectDate:
		return fmt.Sprintf("What date works for you? Please include the month, day, and year, for example %s.", exampleDate(t.now))
	case session.StepCollectTime:
		return fmt.Sprintf("On %s I have %s available. Which time works for you?",
			slots.LongDateFromISO(d.Date), slots.ListSlotDisplays(d.AvailableSlots, maxListedSlots))
	case session.StepReview:
		return reviewSummary(t.sess) + " Should I go ahead and book it, or would you like to change anything?"
	case session.StepConfirm:
		return reviewSummary(t.sess) + " Shall I book it?"
	}
	return ""
}

func reviewSummary(sess *session.Session) string {
	d := sess.Flow.Details
	return fmt.Sprintf("Here's what I have: a %s on %s at %s for %s, %s.",
		d.Title, slots.LongDateFromISO(d.Date), d.TimeDisplay, sess.UserInfo.Name, sess.UserInfo.Email)
}
