// Package messaging defines interfaces for real-time communication.
package messaging

// Broadcaster fans turn events out to the live listeners of one session.
type Broadcaster interface {
	AddClientWithSession(tenantID, sessionID string) chan string
	RemoveClientWithSession(ch chan string, tenantID, sessionID string)
	GetSessionConnectionCount(tenantID, sessionID string) int
	GetTenantConnectionCount(tenantID string) int
	BroadcastTurn(tenantID, sessionID string, event TurnEvent)
}
