package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

const sseHeartbeat = 30 * time.Second

// ListenerRecorder tracks live event listeners per tenant.
type ListenerRecorder interface {
	SetListenerConnections(tenantID string, n int)
}

// SessionHandlers exposes session state to operators
type SessionHandlers struct {
	dialogue    Dialogue
	broadcaster messaging.Broadcaster
	listeners   ListenerRecorder
	logger      *logging.ChanneledLogger
}

// NewSessionHandlers creates session handlers with injected dependencies
func NewSessionHandlers(d Dialogue, broadcaster messaging.Broadcaster, listeners ListenerRecorder, logger *logging.ChanneledLogger) *SessionHandlers {
	return &SessionHandlers{dialogue: d, broadcaster: broadcaster, listeners: listeners, logger: logger}
}

func (h *SessionHandlers) reportListeners(tenantID string) {
	if h.listeners != nil {
		h.listeners.SetListenerConnections(tenantID, h.broadcaster.GetTenantConnectionCount(tenantID))
	}
}

// GetSession handles GET /api/v1/sessions/:id
func (h *SessionHandlers) GetSession(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	snap, ok := h.dialogue.Session(c.Param("id"))
	if !ok || snap.TenantID != tenantCtx.TenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// DeleteSession handles DELETE /api/v1/sessions/:id
func (h *SessionHandlers) DeleteSession(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	id := c.Param("id")
	if snap, ok := h.dialogue.Session(id); !ok || snap.TenantID != tenantCtx.TenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	closed := h.dialogue.CloseSession(c.Request.Context(), id)
	h.logger.HTTP().Info("Session closed by request",
		"tenantId", tenantCtx.TenantID,
		"sessionId", logging.SanitizeSessionID(id),
		"closed", closed)
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}

// GetSessionEvents handles GET /api/v1/sessions/:id/events, streaming every
// turn of the session as server-sent events.
func (h *SessionHandlers) GetSessionEvents(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}
	sessionID := c.Param("id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// The server write timeout would cut the stream.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.HTTP().Debug("SSE write deadline not cleared", "error", err)
	}

	ch := h.broadcaster.AddClientWithSession(tenantCtx.TenantID, sessionID)
	h.reportListeners(tenantCtx.TenantID)
	defer func() {
		h.broadcaster.RemoveClientWithSession(ch, tenantCtx.TenantID, sessionID)
		h.reportListeners(tenantCtx.TenantID)
	}()

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"sessionId\":%q}\n\n", sessionID)
	c.Writer.Flush()

	clientCtx := c.Request.Context()
	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-clientCtx.Done():
			return
		case message := <-ch:
			if _, err := c.Writer.WriteString(message); err != nil {
				h.logger.HTTP().Debug("SSE write failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
				return
			}
			c.Writer.Flush()
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
