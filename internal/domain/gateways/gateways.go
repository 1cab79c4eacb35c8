// Package gateways defines the collaborator interfaces the dialogue core
// depends on. Implementations live under internal/infrastructure.
package gateways

import (
	"context"
	"errors"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
)

// ErrNoAvailability is returned by FindNextAvailableSlot when nothing opens
// up within the tenant's booking horizon.
var ErrNoAvailability = errors.New("no availability within booking horizon")

// NextAvailable is the first open day on or after a requested date.
type NextAvailable struct {
	Date           string // YYYY-MM-DD
	FormattedDate  string
	AvailableSlots []session.Slot
}

// AppointmentRequest carries validated booking details to the calendar.
type AppointmentRequest struct {
	Title           string
	Description     string
	Date            string // YYYY-MM-DD
	Time            string // HH:MM
	DurationMinutes int
	CalendarType    session.CalendarType
}

// Booking is the calendar's confirmation of a created event.
type Booking struct {
	EventID   string
	EventLink string
}

type Calendar interface {
	FindAvailableSlots(ctx context.Context, tenantID, date string) ([]session.Slot, error)
	FindNextAvailableSlot(ctx context.Context, tenantID, date string) (NextAvailable, error)
	CreateAppointment(ctx context.Context, tenantID string, req AppointmentRequest, email, name string) (Booking, error)
}

// Passage is one ranked knowledge base hit.
type Passage struct {
	ID     string
	Text   string
	Source string
	Score  float32
}

type KnowledgeSearch interface {
	Search(ctx context.Context, tenantID, query string) ([]Passage, error)
}

// Answerer composes a spoken answer from retrieved passages.
type Answerer interface {
	Answer(ctx context.Context, query string, passages []Passage) (string, error)
}

// Notifier delivers the end-of-conversation summary.
type Notifier interface {
	SendSummary(ctx context.Context, tenantID string, user session.UserInfo, history []session.Message, last *session.Appointment) error
}

// BookingGuard claims a key for ttl. Claim reports false when another turn
// already holds it.
type BookingGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
