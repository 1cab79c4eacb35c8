package middleware

import (
	"net/http"
	"strings"

	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// BridgeAuthMiddleware requires a bearer token issued to a voice bridge.
// It must run after TenantMiddleware. With no secret configured every
// request is let through.
func BridgeAuthMiddleware(jwtSecret string, logger *logging.ChanneledLogger) gin.HandlerFunc {
	if jwtSecret == "" {
		logger.Auth().Warn("JWT_SECRET is not set, voice routes are unauthenticated")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		claims, err := security.ValidateJWT(token, jwtSecret)
		if err != nil {
			logger.Auth().Debug("Bridge token rejected", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if tenantCtx, ok := GetTenantContext(c); ok && claims.TenantID != tenantCtx.TenantID {
			logger.Auth().Warn("Bridge token used for another tenant",
				"tokenTenant", claims.TenantID, "tenantId", tenantCtx.TenantID)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token not valid for this tenant"})
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for WebSocket and EventSource clients.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return c.Query("token")
}
