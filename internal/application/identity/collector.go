// Package identity collects the caller's name and email before anything
// else is offered, and handles later corrections to either.
package identity

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/intent"
	"github.com/AtRiskMedia/tractcall-go/internal/application/slots"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
)

// Extractor is the part of the extraction service the collector uses.
type Extractor interface {
	Name(ctx context.Context, text string, recent []session.Message) string
	Email(ctx context.Context, text string, recent []session.Message) string
}

// Reply is the collector's answer. Ack is a short acknowledgement without
// a trailing question, for callers that continue with another prompt.
type Reply struct {
	Text string
	Ack  string
}

var (
	emailHintRe = regexp.MustCompile(`(?i)(@|\be-?mail\b|\s+at\s+\S+.*\s+dot\s+)`)
	nameHintRe  = regexp.MustCompile(`(?i)\b(name|name's|call me)\b`)
)

type Collector struct {
	extractor     Extractor
	historyWindow int
	now           func() time.Time
	logger        *logging.ChanneledLogger
}

func NewCollector(extractor Extractor, historyWindow int, now func() time.Time, logger *logging.ChanneledLogger) *Collector {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Collector{extractor: extractor, historyWindow: historyWindow, now: now, logger: logger}
}

// Handle runs one identity turn. With identity complete it only serves
// change requests; otherwise it fills whatever is missing, accepting a name
// and an email from the same utterance.
func (c *Collector) Handle(ctx context.Context, sess *session.Session, text string, res intent.Result) Reply {
	log := c.logger.WithSession(logging.ChannelIdentity, sess.TenantID, sess.ID)
	if sess.UserInfo.Collected && (res.Has(intent.NameChange) || res.Has(intent.EmailChange)) {
		return c.change(ctx, sess, text, res)
	}

	u := &sess.UserInfo
	recent := sess.Recent(c.historyWindow)
	hadName := u.Name != ""

	nameUpdated := false
	if !hadName || res.Has(intent.NameChange) || nameHintRe.MatchString(text) {
		if name := c.extractor.Name(ctx, text, recent); name != "" && name != u.Name {
			nameUpdated = u.SetName(name)
		}
	}

	emailTried := false
	if !session.ValidEmail(u.Email) && (hadName || emailHintRe.MatchString(text)) {
		emailTried = true
		u.SetEmail(c.extractor.Email(ctx, text, recent))
	}

	log.Debug("Identity turn", "hasName", u.Name != "", "hasEmail", u.Email != "", "collected", u.Collected)

	switch {
	case u.Collected:
		log.Info("Caller identity collected")
		return Reply{
			Text: fmt.Sprintf("Thanks, %s! I have your email as %s. How can I help you today?", u.FirstName(), u.Email),
			Ack:  fmt.Sprintf("Thanks, %s!", u.FirstName()),
		}
	case u.Name == "" && len(sess.History) <= 1:
		return Reply{Text: "Hi, thanks for calling! Before we get started, may I have your full name?"}
	case u.Name == "":
		return Reply{Text: "Sorry, I didn't catch your name. Could you tell me your full name, or spell it for me?"}
	case nameUpdated && !hadName:
		return Reply{Text: fmt.Sprintf("Nice to meet you, %s. What's the best email address to reach you?", u.FirstName())}
	case nameUpdated:
		return Reply{Text: fmt.Sprintf("Got it, I'll call you %s. What's the best email address to reach you?", u.Name)}
	case emailTried:
		return Reply{Text: "I couldn't get a valid email address from that. Could you spell it out, like j o h n at gmail dot com?"}
	}
	return Reply{Text: "What's the best email address to reach you?"}
}

// change handles a correction once identity is complete. A request without
// a usable value clears the field so the next turn collects it again.
func (c *Collector) change(ctx context.Context, sess *session.Session, text string, res intent.Result) Reply {
	log := c.logger.WithSession(logging.ChannelIdentity, sess.TenantID, sess.ID)
	u := &sess.UserInfo
	direct := slots.ParseDirectChanges(text, c.now())

	if res.Has(intent.NameChange) {
		name := direct.Name
		if name == "" {
			u.ClearName()
			log.Info("Caller asked to change name")
			return Reply{Text: "Sure. What name should I use?"}
		}
		u.SetName(name)
		log.Info("Caller name updated")
		if !res.Has(intent.EmailChange) {
			ack := fmt.Sprintf("Got it, I've updated your name to %s.", u.Name)
			return Reply{Text: ack + " Anything else I can help with?", Ack: ack}
		}
	}

	email := direct.Email
	if email == "" {
		email = c.extractor.Email(ctx, text, sess.Recent(c.historyWindow))
	}
	if !u.SetEmail(email) {
		u.ClearEmail()
		log.Info("Caller asked to change email")
		return Reply{Text: "Sure. What email address should I use?"}
	}
	log.Info("Caller email updated")
	ack := fmt.Sprintf("Got it, I've updated your email to %s.", u.Email)
	return Reply{Text: ack + " Anything else I can help with?", Ack: ack}
}
