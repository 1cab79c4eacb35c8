// Package notify builds and delivers end-of-conversation summaries.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/AtRiskMedia/tractcall-go/internal/application/slots"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/email/templates"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
)

// ErrNoRecipients is returned when neither the caller nor the tenant has an
// address to send to.
var ErrNoRecipients = errors.New("summary has no recipients")

// TenantSource resolves tenant contexts.
type TenantSource interface {
	Get(tenantID string) (*tenant.Context, error)
}

// Service renders the summary email and hands it to the sender.
type Service struct {
	sender  email.Sender
	tenants TenantSource
	policy  retry.Policy
}

var _ gateways.Notifier = (*Service)(nil)

func NewService(sender email.Sender, tenants TenantSource, policy retry.Policy) *Service {
	return &Service{sender: sender, tenants: tenants, policy: policy}
}

func (s *Service) SendSummary(ctx context.Context, tenantID string, user session.UserInfo, history []session.Message, last *session.Appointment) error {
	tc, err := s.tenants.Get(tenantID)
	if err != nil {
		return err
	}

	var to []string
	if session.ValidEmail(user.Email) {
		to = append(to, user.Email)
	}
	if n := tc.Config.NotificationEmail; n != "" && n != user.Email {
		to = append(to, n)
	}
	if len(to) == 0 {
		return ErrNoRecipients
	}

	props := templates.SummaryProps{
		BusinessName: tc.Config.BusinessName,
		CallerName:   user.FirstName(),
		CallerEmail:  user.Email,
		Transcript:   transcript(history),
	}
	if last != nil {
		props.Appointment = &templates.AppointmentProps{
			Title: last.Details.Title,
			When:  fmt.Sprintf("%s at %s", slots.LongDateFromISO(last.Details.Date), last.Details.TimeDisplay),
			Link:  last.CalendarLink,
		}
	}

	html := templates.GetEmailLayout(templates.EmailLayoutProps{
		Title:     "Conversation summary",
		Preheader: fmt.Sprintf("Summary of your call with %s", tc.Config.BusinessName),
		Content:   templates.GetSummaryEmailContent(props),
	})

	subject := fmt.Sprintf("Your call with %s", tc.Config.BusinessName)
	return retry.Do(ctx, s.policy, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.sender.Send(to, subject, html)
	})
}

func transcript(history []session.Message) []templates.TranscriptLine {
	out := make([]templates.TranscriptLine, 0, len(history))
	for _, m := range history {
		speaker := "Agent"
		if m.Role == session.RoleUser {
			speaker = "You"
		}
		out = append(out, templates.TranscriptLine{Speaker: speaker, Text: m.Content})
	}
	return out
}
