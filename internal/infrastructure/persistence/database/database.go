// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(driverName, dataSourceName string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}

	if err = db.Ping(); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", driverName, "duration", duration)
	if duration > config.SlowQueryThreshold {
		logger.Perf().Warn("Slow database connection", "driverName", driverName, "duration", duration)
	}

	return &DB{DB: db, Driver: driverName}, nil
}

// TursoDSN builds a libsql data source name.
func TursoDSN(databaseURL, authToken string) string {
	return fmt.Sprintf("%s?authToken=%s", databaseURL, authToken)
}

// TimedQuery logs queries slower than the configured threshold.
func (db *DB) TimedQuery(logger *logging.ChanneledLogger, name, tenantID string, fn func() error) error {
	start := time.Now()
	err := fn()
	if d := time.Since(start); d > config.SlowQueryThreshold {
		logger.Perf().Warn("Slow query", "query", name, "tenantId", tenantID, "duration", d)
	}
	return err
}
