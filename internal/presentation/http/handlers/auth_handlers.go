package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/tractcall-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// AuthConfig holds the credentials used to issue bridge tokens.
type AuthConfig struct {
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
	Now          func() time.Time
}

// AuthHandlers issues bridge tokens to operators
type AuthHandlers struct {
	config      AuthConfig
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(config AuthConfig, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AuthHandlers {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 12 * time.Hour
	}
	return &AuthHandlers{config: config, logger: logger, perfTracker: perfTracker}
}

// TokenRequest carries the admin password and the bridge name.
type TokenRequest struct {
	Password string `json:"password" binding:"required"`
	Subject  string `json:"subject"`
}

// PostToken handles POST /api/v1/auth/token
func (h *AuthHandlers) PostToken(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	start := time.Now()
	marker := h.perfTracker.StartOperation("post_token_request", tenantCtx.TenantID)
	defer marker.Complete()

	if h.config.PasswordHash == "" || h.config.JWTSecret == "" {
		h.logger.Auth().Warn("Token requested but ADMIN_PASSWORD_HASH or JWT_SECRET is not set", "tenantId", tenantCtx.TenantID)
		marker.SetSuccess(false)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token issuing is not configured"})
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Auth().Error("Token request JSON binding failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := security.CheckPassword(h.config.PasswordHash, req.Password); err != nil {
		h.logger.Auth().Warn("Token request rejected", "tenantId", tenantCtx.TenantID, "duration", time.Since(start))
		marker.SetSuccess(false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "voice-bridge"
	}
	now := h.config.Now()
	token, err := security.GenerateBridgeToken(subject, tenantCtx.TenantID, h.config.JWTSecret, h.config.TokenTTL, now)
	if err != nil {
		h.logger.Auth().Error("Token signing failed", "tenantId", tenantCtx.TenantID, "error", err)
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	h.logger.Auth().Info("Bridge token issued", "tenantId", tenantCtx.TenantID, "subject", subject, "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": now.Add(h.config.TokenTTL).UTC(),
	})
}
