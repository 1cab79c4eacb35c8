// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
	"github.com/gin-gonic/gin"
)

// TenantSource resolves tenant contexts.
type TenantSource interface {
	Get(tenantID string) (*tenant.Context, error)
}

// TenantDetector picks the tenant a request belongs to.
type TenantDetector interface {
	DetectTenant(c *gin.Context) (string, error)
}

// TenantMiddleware resolves the request's tenant and stores its context.
func TenantMiddleware(detector TenantDetector, tenants TenantSource, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		marker := perfTracker.StartOperation("middleware_tenant_resolution", "unknown")
		defer marker.Complete()

		marker.AddMetadata("path", c.Request.URL.Path)
		marker.AddMetadata("method", c.Request.Method)

		tenantID, err := detector.DetectTenant(c)
		if err != nil {
			logger.Tenant().Warn("Tenant detection failed", "path", c.Request.URL.Path, "error", err)
			marker.SetError(err)
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		marker.TenantID = tenantID

		tenantCtx, err := tenants.Get(tenantID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, tenant.ErrUnknownTenant) {
				status = http.StatusNotFound
			}
			logger.Tenant().Error("Tenant context failed to initialize", "tenantId", tenantID, "error", err)
			marker.SetError(err)
			c.AbortWithStatusJSON(status, gin.H{"error": "tenant not found or failed to initialize"})
			return
		}

		logger.Tenant().Debug("Tenant context resolved successfully",
			"tenantId", tenantCtx.TenantID,
			"duration", time.Since(start),
			"database", tenantCtx.GetDatabaseInfo(),
		)

		c.Set("tenant", tenantCtx)
		c.Next()
	}
}

// GetTenantContext retrieves the tenant context from gin context.
func GetTenantContext(c *gin.Context) (*tenant.Context, bool) {
	tenantCtx, exists := c.Get("tenant")
	if !exists {
		return nil, false
	}

	ctx, ok := tenantCtx.(*tenant.Context)
	return ctx, ok
}
