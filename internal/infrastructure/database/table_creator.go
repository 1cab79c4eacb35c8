// Package database provides tenant schema instantiation
package database

import (
	"database/sql"
	"fmt"
)

// TableCreator handles the creation of the database schema for a tenant.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tenant's database tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS appointments (id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, title TEXT NOT NULL, description TEXT, date TEXT NOT NULL, time TEXT NOT NULL, duration_minutes INTEGER NOT NULL, calendar_type TEXT, attendee_email TEXT NOT NULL, attendee_name TEXT NOT NULL, event_link TEXT NOT NULL, status TEXT NOT NULL DEFAULT 'booked', created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS blocked_slots (id INTEGER PRIMARY KEY AUTOINCREMENT, tenant_id TEXT NOT NULL, date TEXT NOT NULL, time TEXT, reason TEXT)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_appointments_tenant_date ON appointments(tenant_id, date)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_booked_slot ON appointments(tenant_id, date, time) WHERE status = 'booked'`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_email ON appointments(attendee_email)`,
	`CREATE INDEX IF NOT EXISTS idx_blocked_slots_tenant_date ON blocked_slots(tenant_id, date)`,
}
