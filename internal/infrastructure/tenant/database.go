// Package tenant provides database abstraction for multi-tenant support.
package tenant

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	schema "github.com/AtRiskMedia/tractcall-go/internal/infrastructure/database"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	persistence "github.com/AtRiskMedia/tractcall-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/tractcall-go/pkg/config"
)

var (
	connectionPools = make(map[string]*persistence.DB)
	poolMutex       = &sync.RWMutex{}
)

type Database struct {
	Conn     *sql.DB
	TenantID string
	UseTurso bool
	isPooled bool
}

// NewDatabase opens (or reuses) the tenant's pooled connection and ensures
// the appointment schema exists.
func NewDatabase(cfg *Config, logger *logging.ChanneledLogger) (*Database, error) {
	poolKey := getPoolKey(cfg)

	poolMutex.Lock()
	defer poolMutex.Unlock()

	if pooled, exists := connectionPools[poolKey]; exists {
		if err := pooled.Ping(); err == nil {
			return &Database{
				Conn:     pooled.DB,
				TenantID: cfg.TenantID,
				UseTurso: pooled.Driver == "libsql",
				isPooled: true,
			}, nil
		}
		pooled.Close()
		delete(connectionPools, poolKey)
	}

	var (
		conn     *persistence.DB
		err      error
		useTurso bool
	)
	if cfg.TursoEnabled && cfg.TursoDatabase != "" && cfg.TursoToken != "" {
		conn, err = persistence.NewConnectionWithLogger("libsql", persistence.TursoDSN(cfg.TursoDatabase, cfg.TursoToken), logger)
		if err != nil {
			return nil, fmt.Errorf("tenant %s degraded: turso connection failed: %w", cfg.TenantID, err)
		}
		useTurso = true
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		conn, err = persistence.NewConnectionWithLogger("sqlite3", cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite connection failed: %w", err)
		}
	}

	conn.SetMaxOpenConns(config.DBMaxOpenConns)
	conn.SetMaxIdleConns(config.DBMaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)

	if err := schema.NewTableCreator().CreateSchema(conn.DB); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tenant %s schema: %w", cfg.TenantID, err)
	}

	connectionPools[poolKey] = conn

	return &Database{
		Conn:     conn.DB,
		TenantID: cfg.TenantID,
		UseTurso: useTurso,
		isPooled: true,
	}, nil
}

func getPoolKey(cfg *Config) string {
	if cfg.TursoEnabled && cfg.TursoDatabase != "" {
		return fmt.Sprintf("turso:%s", cfg.TenantID)
	}
	return fmt.Sprintf("sqlite:%s", cfg.SQLitePath)
}

func (db *Database) Close() error {
	if db.isPooled {
		return nil
	}
	if db.Conn != nil {
		return db.Conn.Close()
	}
	return nil
}

func (db *Database) GetConnectionInfo() string {
	poolStatus := ""
	if db.isPooled {
		poolStatus = " (pooled)"
	}
	if db.UseTurso {
		return fmt.Sprintf("Turso (tenant: %s)%s", db.TenantID, poolStatus)
	}
	return fmt.Sprintf("SQLite (tenant: %s)%s", db.TenantID, poolStatus)
}

// ClosePools closes every pooled connection. Called once at shutdown.
func ClosePools() {
	poolMutex.Lock()
	defer poolMutex.Unlock()
	for key, conn := range connectionPools {
		conn.Close()
		delete(connectionPools, key)
	}
}

func GetPoolStats() map[string]int {
	poolMutex.RLock()
	defer poolMutex.RUnlock()

	stats := map[string]int{"total": len(connectionPools)}
	active := 0
	for _, conn := range connectionPools {
		if conn.Ping() == nil {
			active++
		}
	}
	stats["active"] = active
	return stats
}
