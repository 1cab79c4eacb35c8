package handlers

import (
	"net/http"

	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/monitoring"
	"github.com/gin-gonic/gin"
)

// HealthSource reports service health.
type HealthSource interface {
	GetSystemStats() map[string]any
	GetMetrics(tenantID string) *monitoring.TenantMetrics
}

// SessionCounter reports how many sessions are held.
type SessionCounter interface {
	Len() int
}

// HealthHandlers serves the liveness endpoint
type HealthHandlers struct {
	monitor  HealthSource
	sessions SessionCounter
	tenants  func() int
}

// NewHealthHandlers creates health handlers. activeTenants may be nil.
func NewHealthHandlers(monitor HealthSource, sessions SessionCounter, activeTenants func() int) *HealthHandlers {
	return &HealthHandlers{monitor: monitor, sessions: sessions, tenants: activeTenants}
}

// GetHealth handles GET /api/v1/health. With ?tenantId= the tenant's call
// metrics are included.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	body := gin.H{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	}
	if h.tenants != nil {
		body["activeTenants"] = h.tenants()
	}
	if h.monitor != nil {
		body["monitor"] = h.monitor.GetSystemStats()
		if id := c.Query("tenantId"); id != "" {
			if m := h.monitor.GetMetrics(id); m != nil {
				body["tenant"] = m
			}
		}
	}
	c.JSON(http.StatusOK, body)
}
