// Package tenant provides tenant detection and validation.
package tenant

import (
	"fmt"
	"os"
	"strconv"

	"github.com/AtRiskMedia/tractcall-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Detector handles tenant detection from HTTP requests
type Detector struct {
	manager     *Manager
	multiTenant bool
}

// NewDetector creates a new tenant detector
func NewDetector(manager *Manager) *Detector {
	multiTenant := false
	if val := os.Getenv("ENABLE_MULTI_TENANT"); val != "" {
		multiTenant, _ = strconv.ParseBool(val)
	}
	return &Detector{manager: manager, multiTenant: multiTenant}
}

// DetectTenant extracts the tenant ID from the request. In single tenant
// mode every request belongs to the default tenant.
func (d *Detector) DetectTenant(c *gin.Context) (string, error) {
	if !d.multiTenant {
		return config.DefaultTenantID, nil
	}

	tenantID := c.GetHeader("X-Tenant-ID")
	// WebSocket clients cannot always set headers
	if tenantID == "" {
		tenantID = c.Query("tenantId")
	}
	if tenantID == "" {
		return config.DefaultTenantID, nil
	}

	if !d.manager.Exists(tenantID) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTenant, tenantID)
	}
	return tenantID, nil
}
