package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/dialogue"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/tractcall-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamReadLimit = 64 * 1024
	streamIdleLimit = 10 * time.Minute
	streamWriteWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Bridges authenticate with a bearer token, not cookies.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamFrame is one inbound message on the voice stream.
type streamFrame struct {
	Text string `json:"text"`
}

type streamError struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}

// GetStream handles GET /api/v1/voice/stream. Each text frame is one
// utterance; each reply is a TurnResponse. The session is closed when the
// connection ends.
func (h *VoiceHandlers) GetStream(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	sessionID := c.Query("sessionId")
	if sessionID == "" {
		sessionID = security.GenerateULID()
	} else if !h.ownsSession(tenantCtx.TenantID, sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.HTTP().Warn("WebSocket upgrade failed", "tenantId", tenantCtx.TenantID, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(streamReadLimit)

	log := h.logger.WithSession(logging.ChannelHTTP, tenantCtx.TenantID, sessionID)
	log.Info("Voice stream opened")
	connected := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() {
		closed := false
		if snap, ok := h.dialogue.Session(sessionID); ok && snap.TenantID == tenantCtx.TenantID {
			closed = h.dialogue.CloseSession(ctx, sessionID)
		}
		log.Info("Voice stream closed", "duration", time.Since(connected), "sessionClosed", closed)
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamIdleLimit))
		var frame streamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Voice stream read failed", "error", err)
			}
			return
		}

		resp, err := h.turn(ctx, tenantCtx.TenantID, sessionID, frame.Text)
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err != nil {
			log.Error("Turn failed on voice stream", "error", err)
			_ = conn.WriteJSON(streamError{SessionID: sessionID, Error: http.StatusText(turnErrorStatus(err))})
			return
		}
		if err := conn.WriteJSON(TurnResponse{SessionID: sessionID, Response: resp}); err != nil {
			log.Warn("Voice stream write failed", "error", err)
			return
		}

		if resp.Route == dialogue.RouteGoodbye {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "goodbye"))
			return
		}
	}
}

// ownsSession reports whether id is unused or already belongs to tenantID.
func (h *VoiceHandlers) ownsSession(tenantID, id string) bool {
	snap, ok := h.dialogue.Session(id)
	return !ok || snap.TenantID == tenantID
}
