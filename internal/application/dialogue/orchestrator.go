// Package dialogue routes each caller utterance to the component that owns
// it and records the turn in the caller's session.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AtRiskMedia/tractcall-go/internal/application/appointment"
	"github.com/AtRiskMedia/tractcall-go/internal/application/identity"
	"github.com/AtRiskMedia/tractcall-go/internal/application/intent"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/metrics"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
)

var tracer trace.Tracer = otel.Tracer("tractcall.dialogue")

// ErrTenantMismatch is returned when a session id is reused under another tenant.
var ErrTenantMismatch = errors.New("session belongs to another tenant")

// Route names the branch that handled a turn.
type Route string

const (
	RouteEmpty       Route = "empty"
	RouteGoodbye     Route = "goodbye"
	RouteEmergency   Route = "emergency"
	RouteIdentity    Route = "identity"
	RouteAppointment Route = "appointment"
	RouteFollowUp    Route = "follow_up"
	RouteKnowledge   Route = "knowledge"
)

// SideEffects carries structured results of a turn for the transport.
type SideEffects struct {
	CalendarLink       string            `json:"calendarLink,omitempty"`
	AppointmentDetails *session.SlotBag  `json:"appointmentDetails,omitempty"`
	UserInfo           *session.UserInfo `json:"userInfo,omitempty"`
}

// Response is the result of one turn.
type Response struct {
	ResponseText string       `json:"responseText"`
	SideEffects  SideEffects  `json:"sideEffects"`
	Route        Route        `json:"route"`
	Step         session.Step `json:"step"`
}

// SessionStore is the part of the session registry the orchestrator uses.
type SessionStore interface {
	Acquire(id, tenantID string) (*session.Session, func())
	Peek(id string) (session.Session, bool)
	Take(id string) (session.Session, bool)
}

type TenantSource interface {
	Get(tenantID string) (*tenant.Context, error)
}

// Booker drives the appointment flow.
type Booker interface {
	Start(ctx context.Context, sess *session.Session, text string) appointment.Reply
	Handle(ctx context.Context, sess *session.Session, text string) appointment.Reply
	Resume(ctx context.Context, sess *session.Session) appointment.Reply
}

// IdentityCollector fills and corrects the caller's name and email.
type IdentityCollector interface {
	Handle(ctx context.Context, sess *session.Session, text string, res intent.Result) identity.Reply
}

// SummaryDispatcher sends a conversation summary without blocking.
type SummaryDispatcher interface {
	Dispatch(snapshot session.Session)
}

type Options struct {
	Store       SessionStore
	Tenants     TenantSource
	Booker      Booker
	Identity    IdentityCollector
	Knowledge   gateways.KnowledgeSearch
	Answerer    gateways.Answerer
	Summaries   SummaryDispatcher // optional
	Now         func() time.Time
	TurnTimeout time.Duration
	Logger      *logging.ChanneledLogger
}

type Orchestrator struct {
	store       SessionStore
	tenants     TenantSource
	booker      Booker
	identity    IdentityCollector
	knowledge   gateways.KnowledgeSearch
	answerer    gateways.Answerer
	summaries   SummaryDispatcher
	now         func() time.Time
	turnTimeout time.Duration
	fallback    *intent.Classifier
	logger      *logging.ChanneledLogger
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	fallback, err := intent.New(nil)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		store:       opts.Store,
		tenants:     opts.Tenants,
		booker:      opts.Booker,
		identity:    opts.Identity,
		knowledge:   opts.Knowledge,
		answerer:    opts.Answerer,
		summaries:   opts.Summaries,
		now:         opts.Now,
		turnTimeout: opts.TurnTimeout,
		fallback:    fallback,
		logger:      opts.Logger,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.turnTimeout <= 0 {
		o.turnTimeout = 45 * time.Second
	}
	if o.logger == nil {
		o.logger = logging.NewDiscard()
	}
	return o, nil
}

// turnState is what one routing decision produces.
type turnState struct {
	route     Route
	text      string
	booking   *session.Appointment
	summarize bool
}

// HandleUtterance runs one turn. Turns on the same session are serialized.
// The only errors are an unknown tenant and a tenant mismatch; everything
// else ends in a spoken response.
func (o *Orchestrator) HandleUtterance(ctx context.Context, sessionID, tenantID, text string) (Response, error) {
	start := time.Now()
	text = strings.TrimSpace(text)

	tc, err := o.tenants.Get(tenantID)
	if err != nil {
		return Response{}, err
	}

	ctx, span := tracer.Start(ctx, "dialogue.turn", trace.WithAttributes(
		attribute.String("tenant.id", tc.TenantID),
		attribute.String("session.id", logging.SanitizeSessionID(sessionID)),
	))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	sess, release := o.store.Acquire(sessionID, tc.TenantID)
	defer release()
	if sess.TenantID != tc.TenantID {
		return Response{}, fmt.Errorf("%w: %s", ErrTenantMismatch, logging.SanitizeSessionID(sessionID))
	}
	log := o.logger.WithSession(logging.ChannelDialogue, tc.TenantID, sess.ID)

	if text == "" {
		return Response{ResponseText: "I'm sorry, I didn't catch that. Could you say it again?", Route: RouteEmpty, Step: sess.Flow.Step}, nil
	}

	userBefore := sess.UserInfo
	sess.Append(session.RoleUser, text, o.now())

	classifier := tc.Classifier
	if classifier == nil {
		classifier = o.fallback
	}
	res := classifier.Classify(text)

	st := o.route(ctx, tc, sess, text, res)
	sess.Append(session.RoleAssistant, st.text, o.now())

	resp := Response{ResponseText: st.text, Route: st.route, Step: sess.Flow.Step}
	if st.booking != nil {
		details := st.booking.Details.Clone()
		resp.SideEffects.CalendarLink = st.booking.CalendarLink
		resp.SideEffects.AppointmentDetails = &details
	}
	if sess.UserInfo != userBefore {
		u := sess.UserInfo
		resp.SideEffects.UserInfo = &u
	}

	if st.summarize {
		o.summaries.Dispatch(sess.Snapshot())
	}

	elapsed := time.Since(start)
	metrics.TurnsTotal.WithLabelValues(string(st.route)).Inc()
	metrics.TurnLatency.WithLabelValues(string(st.route)).Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.String("dialogue.route", string(st.route)),
		attribute.String("dialogue.intent", string(res.Primary)),
	)
	log.Info("Turn handled",
		"route", st.route,
		"intent", res.Primary,
		"confidence", res.Confidence,
		"step", sess.Flow.Step,
		"duration", elapsed)

	return resp, nil
}

// route applies the routing priority. Goodbye preempts everything and an
// active booking is never abandoned by a follow-up interpretation.
func (o *Orchestrator) route(ctx context.Context, tc *tenant.Context, sess *session.Session, text string, res intent.Result) turnState {
	if res.Primary == intent.Goodbye {
		return o.farewell(tc, sess)
	}

	if res.Primary == intent.Emergency {
		msg := tc.Config.EmergencyMessage
		if res.Category != nil && res.Category.Response != "" {
			msg = res.Category.Response
		}
		return turnState{route: RouteEmergency, text: msg}
	}

	changeRequest := res.Has(intent.NameChange) || res.Has(intent.EmailChange)
	inReview := sess.Flow.Step == session.StepReview || sess.Flow.Step == session.StepConfirm
	if !sess.UserInfo.Collected || (changeRequest && !inReview) {
		return o.collectIdentity(ctx, sess, text, res)
	}

	if sess.Flow.Active {
		sess.AwaitingFollowUp = false
		r := o.booker.Handle(ctx, sess, text)
		return turnState{route: RouteAppointment, text: r.Text, booking: r.Booking}
	}
	if res.Primary == intent.Appointment {
		sess.AwaitingFollowUp = false
		r := o.booker.Start(ctx, sess, text)
		return turnState{route: RouteAppointment, text: r.Text}
	}

	if sess.AwaitingFollowUp {
		sess.AwaitingFollowUp = false
		switch {
		case res.Has(intent.FollowUpAppointment):
			r := o.booker.Start(ctx, sess, text)
			return turnState{route: RouteAppointment, text: r.Text}
		case intent.IsDecline(text):
			return o.farewell(tc, sess)
		case res.Primary == intent.FollowUpPositive:
			return turnState{route: RouteFollowUp, text: "Of course. What else can I help you with?"}
		}
	}

	return o.answer(ctx, tc, sess, text, res)
}

func (o *Orchestrator) collectIdentity(ctx context.Context, sess *session.Session, text string, res intent.Result) turnState {
	r := o.identity.Handle(ctx, sess, text, res)
	if sess.UserInfo.Collected && sess.Flow.Active && r.Ack != "" {
		resume := o.booker.Resume(ctx, sess)
		return turnState{route: RouteIdentity, text: r.Ack + " " + resume.Text}
	}
	return turnState{route: RouteIdentity, text: r.Text}
}

// farewell ends the conversation. The summary goes out at most once per
// session, and only to callers who earned one.
func (o *Orchestrator) farewell(tc *tenant.Context, sess *session.Session) turnState {
	sess.Flow.Reset()
	sess.AwaitingFollowUp = false

	name := ""
	if first := sess.UserInfo.FirstName(); first != "" {
		name = ", " + first
	}
	text := fmt.Sprintf("Thank you for calling %s%s. Have a great day, goodbye!", tc.Config.BusinessName, name)

	summarize := o.summaries != nil && sess.NeedsSummary()
	if summarize {
		sess.SummarySent = true
		text = fmt.Sprintf("Thank you for calling %s%s. I'll email you a summary of our conversation. Have a great day, goodbye!", tc.Config.BusinessName, name)
	}
	return turnState{route: RouteGoodbye, text: text, summarize: summarize}
}

const followUpQuestion = "Is there anything else I can help you with, or would you like to book an appointment?"

// answer is the default branch: a configured category response or a
// knowledge base answer, followed by the follow-up question.
func (o *Orchestrator) answer(ctx context.Context, tc *tenant.Context, sess *session.Session, text string, res intent.Result) turnState {
	log := o.logger.WithSession(logging.ChannelKnowledge, tc.TenantID, sess.ID)
	sess.AwaitingFollowUp = true

	if res.Category != nil && res.Category.Response != "" {
		return turnState{route: RouteKnowledge, text: res.Category.Response + " " + followUpQuestion}
	}

	reply := o.lookupAnswer(ctx, tc, text, log)
	if reply == "" {
		reply = fmt.Sprintf("I'm not sure about that one, but someone from %s can follow up with you.", tc.Config.BusinessName)
	}
	return turnState{route: RouteKnowledge, text: reply + " " + followUpQuestion}
}

func (o *Orchestrator) lookupAnswer(ctx context.Context, tc *tenant.Context, text string, log *slog.Logger) string {
	if o.knowledge == nil {
		return ""
	}
	passages, err := o.knowledge.Search(ctx, tc.TenantID, text)
	if err != nil {
		log.Warn("Knowledge search failed", "error", err)
		return ""
	}
	if len(passages) == 0 || o.answerer == nil {
		return ""
	}
	answer, err := o.answerer.Answer(ctx, text, passages)
	if err != nil {
		log.Warn("Answer generation failed", "error", err)
		return ""
	}
	return strings.TrimSpace(answer)
}

// Session returns a snapshot of a live session.
func (o *Orchestrator) Session(id string) (session.Session, bool) {
	return o.store.Peek(id)
}

// CloseSession ends a session, dispatching its summary if one is still
// owed. It reports whether the session existed.
func (o *Orchestrator) CloseSession(ctx context.Context, sessionID string) bool {
	snap, ok := o.store.Take(sessionID)
	if !ok {
		return false
	}
	log := o.logger.WithSession(logging.ChannelDialogue, snap.TenantID, snap.ID)
	if o.summaries != nil && snap.NeedsSummary() {
		snap.SummarySent = true
		o.summaries.Dispatch(snap)
		log.Info("Session closed, summary dispatched", "messages", len(snap.History))
		return true
	}
	log.Info("Session closed", "messages", len(snap.History))
	return true
}
