// Package tenant provides tenant context management for multi-tenant support.
package tenant

import (
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/intent"
)

// Context holds everything scoped to one tenant.
type Context struct {
	TenantID   string
	Config     *Config
	Database   *Database
	Categories []intent.Category
	Classifier *intent.Classifier
}

// Close cleans up the tenant context
func (ctx *Context) Close() error {
	if ctx.Database != nil {
		return ctx.Database.Close()
	}
	return nil
}

// Location is the tenant's clock.
func (ctx *Context) Location() *time.Location {
	return ctx.Config.Location()
}

// CategoryResponse returns the canned response configured for a category.
func (ctx *Context) CategoryResponse(name string) string {
	for _, c := range ctx.Categories {
		if c.Name == name {
			return c.Response
		}
	}
	return ""
}

// GetDatabaseInfo returns database connection information for logging
func (ctx *Context) GetDatabaseInfo() string {
	if ctx.Database != nil {
		return ctx.Database.GetConnectionInfo()
	}
	return "no database connection"
}
