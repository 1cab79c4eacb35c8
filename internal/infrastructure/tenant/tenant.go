// Package tenant manages tenant-specific configurations and context,
// isolating multi-tenancy logic from the rest of the application.
package tenant

import (
	"fmt"
	"sync"

	"github.com/AtRiskMedia/tractcall-go/internal/application/intent"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/pkg/config"
)

// Manager loads and caches tenant contexts.
type Manager struct {
	tenantsDir     string
	withDatabase   bool
	contexts       map[string]*Context
	contextMutexes sync.Map // Per-tenant mutexes for fine-grained locking
	globalMutex    sync.RWMutex
	logger         *logging.ChanneledLogger
}

// NewManager creates a tenant manager rooted at tenantsDir. withDatabase
// controls whether contexts open the tenant's calendar database.
func NewManager(tenantsDir string, withDatabase bool, logger *logging.ChanneledLogger) *Manager {
	return &Manager{
		tenantsDir:   tenantsDir,
		withDatabase: withDatabase,
		contexts:     make(map[string]*Context),
		logger:       logger,
	}
}

// Get returns the cached context for tenantID, loading it on first use.
// An empty id selects the default tenant.
func (m *Manager) Get(tenantID string) (*Context, error) {
	if tenantID == "" {
		tenantID = config.DefaultTenantID
	}

	m.globalMutex.RLock()
	ctx, exists := m.contexts[tenantID]
	m.globalMutex.RUnlock()
	if exists {
		return ctx, nil
	}

	tenantMutexInterface, _ := m.contextMutexes.LoadOrStore(tenantID, &sync.Mutex{})
	tenantMutex := tenantMutexInterface.(*sync.Mutex)

	tenantMutex.Lock()
	defer tenantMutex.Unlock()

	m.globalMutex.RLock()
	ctx, exists = m.contexts[tenantID]
	m.globalMutex.RUnlock()
	if exists {
		return ctx, nil
	}

	return m.createContext(tenantID)
}

// createContext creates a new tenant context
func (m *Manager) createContext(tenantID string) (*Context, error) {
	cfg, err := LoadTenantConfig(m.tenantsDir, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant config: %w", err)
	}

	categories, err := intent.LoadCategories(cfg.IntentsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load intent categories: %w", err)
	}
	classifier, err := intent.New(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to compile intent categories: %w", err)
	}

	ctx := &Context{
		TenantID:   tenantID,
		Config:     cfg,
		Categories: categories,
		Classifier: classifier,
	}

	if m.withDatabase {
		db, err := NewDatabase(cfg, m.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection: %w", err)
		}
		ctx.Database = db
	}

	m.globalMutex.Lock()
	m.contexts[tenantID] = ctx
	m.globalMutex.Unlock()

	m.logger.Tenant().Info("Tenant context loaded",
		"tenantId", tenantID,
		"timezone", cfg.Timezone,
		"categories", len(categories),
		"database", ctx.GetDatabaseInfo())
	return ctx, nil
}

// PreActivateAllTenants loads every tenant found on disk plus the default
// tenant so configuration errors surface at startup.
func (m *Manager) PreActivateAllTenants() error {
	ids, err := ListTenants(m.tenantsDir)
	if err != nil {
		return err
	}
	ids = append(ids, config.DefaultTenantID)

	var failedTenants []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := m.Get(id); err != nil {
			m.logger.Tenant().Error("Tenant pre-activation failed", "tenantId", id, "error", err)
			failedTenants = append(failedTenants, id)
		}
	}

	if len(failedTenants) > 0 {
		return fmt.Errorf("pre-activation failed for tenants: %v", failedTenants)
	}
	return nil
}

// Exists reports whether tenantID can be loaded.
func (m *Manager) Exists(tenantID string) bool {
	if tenantID == config.DefaultTenantID {
		return true
	}
	m.globalMutex.RLock()
	_, ok := m.contexts[tenantID]
	m.globalMutex.RUnlock()
	if ok {
		return true
	}
	ids, err := ListTenants(m.tenantsDir)
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == tenantID {
			return true
		}
	}
	return false
}

// ActiveCount returns the number of loaded tenant contexts.
func (m *Manager) ActiveCount() int {
	m.globalMutex.RLock()
	defer m.globalMutex.RUnlock()
	return len(m.contexts)
}

// Close cleans up all tenant contexts
func (m *Manager) Close() error {
	m.globalMutex.Lock()
	defer m.globalMutex.Unlock()

	for _, ctx := range m.contexts {
		if err := ctx.Close(); err != nil {
			continue
		}
	}

	m.contexts = make(map[string]*Context)
	ClosePools()
	return nil
}
