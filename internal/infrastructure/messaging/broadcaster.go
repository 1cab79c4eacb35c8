// Package messaging provides the SSE broadcaster used to follow live calls.
package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
)

// TurnEvent is what listeners receive after every dialogue turn.
type TurnEvent struct {
	Utterance    string    `json:"utterance"`
	ResponseText string    `json:"responseText"`
	Route        string    `json:"route"`
	Step         string    `json:"step"`
	CalendarLink string    `json:"calendarLink,omitempty"`
	At           time.Time `json:"at"`
}

// SSEBroadcaster manages tenant-scoped, session-specific SSE connections.
type SSEBroadcaster struct {
	tenantSessions map[string]map[string][]chan string // tenantId -> sessionId -> []channels
	mu             sync.Mutex
	logger         *logging.ChanneledLogger
}

var _ Broadcaster = (*SSEBroadcaster)(nil)

func NewSSEBroadcaster(logger *logging.ChanneledLogger) *SSEBroadcaster {
	return &SSEBroadcaster{
		tenantSessions: make(map[string]map[string][]chan string),
		logger:         logger,
	}
}

// AddClientWithSession registers a new SSE client with tenant and session isolation.
func (b *SSEBroadcaster) AddClientWithSession(tenantID, sessionID string) chan string {
	ch := make(chan string, 10)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tenantSessions[tenantID] == nil {
		b.tenantSessions[tenantID] = make(map[string][]chan string)
	}
	b.tenantSessions[tenantID][sessionID] = append(b.tenantSessions[tenantID][sessionID], ch)

	b.logger.HTTP().Debug("SSE client registered", "tenantId", tenantID, "sessionId", logging.SanitizeSessionID(sessionID))
	return ch
}

// RemoveClientWithSession removes an SSE client and closes its channel.
func (b *SSEBroadcaster) RemoveClientWithSession(ch chan string, tenantID, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tenantSessions, exists := b.tenantSessions[tenantID]; exists {
		if sessionClients, exists := tenantSessions[sessionID]; exists {
			kept := make([]chan string, 0, len(sessionClients))
			for _, client := range sessionClients {
				if client != ch {
					kept = append(kept, client)
				}
			}
			if len(kept) == 0 {
				delete(tenantSessions, sessionID)
			} else {
				tenantSessions[sessionID] = kept
			}
		}
		if len(tenantSessions) == 0 {
			delete(b.tenantSessions, tenantID)
		}
	}
	close(ch)
	b.logger.HTTP().Debug("SSE client unregistered", "tenantId", tenantID, "sessionId", logging.SanitizeSessionID(sessionID))
}

// GetSessionConnectionCount returns the connection count for a specific tenant session.
func (b *SSEBroadcaster) GetSessionConnectionCount(tenantID, sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tenantSessions[tenantID][sessionID])
}

// GetTenantConnectionCount returns the connection count across a tenant's sessions.
func (b *SSEBroadcaster) GetTenantConnectionCount(tenantID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, clients := range b.tenantSessions[tenantID] {
		n += len(clients)
	}
	return n
}

// BroadcastTurn sends a turn event to every listener of the session. Slow
// listeners lose events rather than stall the turn.
func (b *SSEBroadcaster) BroadcastTurn(tenantID, sessionID string, event TurnEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.HTTP().Error("Failed to encode turn event", "error", err)
		return
	}
	message := fmt.Sprintf("event: turn\ndata: %s\n\n", payload)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.tenantSessions[tenantID][sessionID] {
		select {
		case ch <- message:
		default:
			b.logger.HTTP().Warn("SSE channel full, message dropped", "tenantId", tenantID, "sessionId", logging.SanitizeSessionID(sessionID))
		}
	}
}
