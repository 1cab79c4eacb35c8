// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/dialogue"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/speech"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/tractcall-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// Dialogue is the orchestrator surface the transport drives.
type Dialogue interface {
	HandleUtterance(ctx context.Context, sessionID, tenantID, text string) (dialogue.Response, error)
	CloseSession(ctx context.Context, sessionID string) bool
	Session(id string) (session.Session, bool)
}

// TurnRecorder receives per-tenant turn statistics.
type TurnRecorder interface {
	RecordTurn(tenantID, route string, duration time.Duration, success bool)
	RecordBooking(tenantID string)
}

// VoiceHandlers serves utterances from voice bridges and chat clients
type VoiceHandlers struct {
	dialogue    Dialogue
	broadcaster messaging.Broadcaster
	recorder    TurnRecorder
	transcriber speech.Transcriber // nil when transcription is disabled
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewVoiceHandlers creates voice handlers with injected dependencies
func NewVoiceHandlers(d Dialogue, broadcaster messaging.Broadcaster, recorder TurnRecorder, transcriber speech.Transcriber, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *VoiceHandlers {
	return &VoiceHandlers{
		dialogue:    d,
		broadcaster: broadcaster,
		recorder:    recorder,
		transcriber: transcriber,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// UtteranceRequest is one caller utterance.
type UtteranceRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// TurnResponse is the wire form of a handled turn.
type TurnResponse struct {
	SessionID string `json:"sessionId"`
	dialogue.Response
	Transcript string `json:"transcript,omitempty"`
}

// PostUtterance handles POST /api/v1/voice/utterance
func (h *VoiceHandlers) PostUtterance(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("post_utterance_request", tenantCtx.TenantID)
	defer marker.Complete()

	var req UtteranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.HTTP().Warn("Invalid utterance request", "tenantId", tenantCtx.TenantID, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = security.GenerateULID()
	}

	resp, err := h.turn(c.Request.Context(), tenantCtx.TenantID, req.SessionID, req.Text)
	if err != nil {
		marker.SetError(err)
		h.writeTurnError(c, tenantCtx.TenantID, req.SessionID, err)
		return
	}
	c.JSON(http.StatusOK, TurnResponse{SessionID: req.SessionID, Response: resp})
}

// TranscribeRequest points at recorded caller audio.
type TranscribeRequest struct {
	SessionID string `json:"sessionId"`
	AudioURL  string `json:"audioUrl" binding:"required"`
}

// PostTranscribe handles POST /api/v1/voice/transcribe. The audio is
// transcribed and the transcript handled as the caller's utterance.
func (h *VoiceHandlers) PostTranscribe(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("post_transcribe_request", tenantCtx.TenantID)
	defer marker.Complete()

	if h.transcriber == nil {
		h.logger.Speech().Warn("Transcription requested but not configured", "tenantId", tenantCtx.TenantID)
		marker.SetSuccess(false)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "speech transcription is not configured"})
		return
	}

	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = security.GenerateULID()
	}

	start := time.Now()
	transcript, err := h.transcriber.TranscribeURL(c.Request.Context(), req.AudioURL)
	if err != nil {
		h.logger.Speech().Error("Transcription failed",
			"tenantId", tenantCtx.TenantID,
			"sessionId", logging.SanitizeSessionID(req.SessionID),
			"error", err)
		marker.SetError(err)
		if errors.Is(err, speech.ErrEmptyTranscript) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no speech found in audio"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "transcription failed"})
		return
	}
	h.logger.Speech().Info("Audio transcribed",
		"tenantId", tenantCtx.TenantID,
		"sessionId", logging.SanitizeSessionID(req.SessionID),
		"duration", time.Since(start))

	resp, err := h.turn(c.Request.Context(), tenantCtx.TenantID, req.SessionID, transcript)
	if err != nil {
		marker.SetError(err)
		h.writeTurnError(c, tenantCtx.TenantID, req.SessionID, err)
		return
	}
	c.JSON(http.StatusOK, TurnResponse{SessionID: req.SessionID, Response: resp, Transcript: transcript})
}

// turn runs one utterance through the orchestrator and publishes the result.
func (h *VoiceHandlers) turn(ctx context.Context, tenantID, sessionID, text string) (dialogue.Response, error) {
	start := time.Now()
	resp, err := h.dialogue.HandleUtterance(ctx, sessionID, tenantID, text)
	if h.recorder != nil {
		h.recorder.RecordTurn(tenantID, string(resp.Route), time.Since(start), err == nil)
		if err == nil && resp.SideEffects.CalendarLink != "" {
			h.recorder.RecordBooking(tenantID)
		}
	}
	if err != nil {
		return resp, err
	}
	if h.broadcaster != nil {
		h.broadcaster.BroadcastTurn(tenantID, sessionID, messaging.TurnEvent{
			Utterance:    text,
			ResponseText: resp.ResponseText,
			Route:        string(resp.Route),
			Step:         string(resp.Step),
			CalendarLink: resp.SideEffects.CalendarLink,
			At:           time.Now().UTC(),
		})
	}
	return resp, nil
}

func turnErrorStatus(err error) int {
	switch {
	case errors.Is(err, tenant.ErrUnknownTenant):
		return http.StatusNotFound
	case errors.Is(err, dialogue.ErrTenantMismatch):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *VoiceHandlers) writeTurnError(c *gin.Context, tenantID, sessionID string, err error) {
	status := turnErrorStatus(err)
	h.logger.HTTP().Error("Turn failed",
		"tenantId", tenantID,
		"sessionId", logging.SanitizeSessionID(sessionID),
		"status", status,
		"error", err)
	c.JSON(status, gin.H{"error": http.StatusText(status)})
}
