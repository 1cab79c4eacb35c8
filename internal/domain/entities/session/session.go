// Package session provides the per-caller dialogue state: identity, the
// conversation log, and the appointment flow with its slot bag.
package session

import (
	"regexp"
	"strings"
	"time"
)

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the append-only conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s has the local@domain.tld shape.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// UserInfo holds the caller's identity. Empty strings mean "not yet known".
type UserInfo struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Collected bool   `json:"collected"`
}

// SetName stores a trimmed, non-empty name.
func (u *UserInfo) SetName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	u.Name = name
	u.refresh()
	return true
}

// SetEmail stores email only when it passes ValidEmail; an invalid value
// leaves the previously stored email untouched.
func (u *UserInfo) SetEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if !ValidEmail(email) {
		return false
	}
	u.Email = email
	u.refresh()
	return true
}

// ClearName forgets the name so it is collected again.
func (u *UserInfo) ClearName() {
	u.Name = ""
	u.refresh()
}

// ClearEmail forgets the email so it is collected again.
func (u *UserInfo) ClearEmail() {
	u.Email = ""
	u.refresh()
}

func (u *UserInfo) refresh() {
	u.Collected = u.Name != "" && ValidEmail(u.Email)
}

// FirstName returns the first word of the name, for friendly prompts.
func (u UserInfo) FirstName() string {
	if f := strings.Fields(u.Name); len(f) > 0 {
		return f[0]
	}
	return ""
}

// Appointment records the most recent successful booking.
type Appointment struct {
	CalendarLink string    `json:"calendarLink"`
	EventID      string    `json:"eventId"`
	Details      SlotBag   `json:"details"`
	BookedAt     time.Time `json:"bookedAt"`
}

// Session is one caller's dialogue state. It is owned by the session store;
// callers mutate it only while holding the per-session turn lock.
type Session struct {
	ID               string          `json:"sessionId"`
	TenantID         string          `json:"tenantId,omitempty"`
	UserInfo         UserInfo        `json:"userInfo"`
	History          []Message       `json:"conversationHistory"`
	AwaitingFollowUp bool            `json:"awaitingFollowUp"`
	Flow             AppointmentFlow `json:"appointmentFlow"`
	LastAppointment  *Appointment    `json:"lastAppointment,omitempty"`
	SummarySent      bool            `json:"summarySent"`
	CreatedAt        time.Time       `json:"createdAt"`
	LastActivity     time.Time       `json:"lastActivity"`
}

// New creates a session with default state.
func New(id, tenantID string, now time.Time) *Session {
	return &Session{
		ID:           id,
		TenantID:     tenantID,
		Flow:         AppointmentFlow{Step: StepNone},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Append adds a message to the history. History is never truncated.
func (s *Session) Append(role Role, content string, at time.Time) {
	s.History = append(s.History, Message{Role: role, Content: content, Timestamp: at})
	s.LastActivity = at
}

// Recent returns a copy of at most the last n messages.
func (s *Session) Recent(n int) []Message {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	start := len(s.History) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(s.History)-start)
	copy(out, s.History[start:])
	return out
}

// NeedsSummary reports whether a conversation summary should be sent: the
// caller is identified, said something beyond one utterance, and no summary
// went out yet.
func (s *Session) NeedsSummary() bool {
	if s.SummarySent || !s.UserInfo.Collected {
		return false
	}
	userTurns := 0
	for _, m := range s.History {
		if m.Role == RoleUser {
			userTurns++
		}
	}
	return userTurns >= 2
}

// Snapshot returns a deep copy safe to hand to another goroutine.
func (s *Session) Snapshot() Session {
	cp := *s
	cp.History = append([]Message(nil), s.History...)
	cp.Flow.Details = s.Flow.Details.Clone()
	if s.LastAppointment != nil {
		a := *s.LastAppointment
		a.Details = s.LastAppointment.Details.Clone()
		cp.LastAppointment = &a
	}
	return cp
}
