// Package tenant handles loading and providing tenant-specific configurations.
package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/pkg/config"
)

// Flow variants decide where COLLECT_TIME leads.
const (
	FlowReview  = "review"
	FlowConfirm = "confirm"
)

// ErrUnknownTenant is returned for a tenant with no config directory.
var ErrUnknownTenant = errors.New("unknown tenant")

// BusinessHours bounds slot generation. Open and Close are HH:MM in the
// tenant's timezone.
type BusinessHours struct {
	Open            string `json:"open"`
	Close           string `json:"close"`
	SlotMinutes     int    `json:"slotMinutes"`
	DurationMinutes int    `json:"durationMinutes"`
}

// Config represents the structure of a single tenant's configuration
type Config struct {
	TenantID          string        `json:"tenantId"`
	BusinessName      string        `json:"businessName"`
	Timezone          string        `json:"timezone"`
	Hours             BusinessHours `json:"businessHours"`
	SearchHorizonDays int           `json:"searchHorizonDays"`
	CalendarType      string        `json:"calendarType,omitempty"`
	FlowVariant       string        `json:"flowVariant,omitempty"`
	NotificationEmail string        `json:"notificationEmail,omitempty"`
	EmergencyMessage  string        `json:"emergencyMessage,omitempty"`
	EventLinkBase     string        `json:"eventLinkBase,omitempty"`
	Services          []string      `json:"services,omitempty"`
	TursoEnabled      bool          `json:"TURSO_ENABLED"`
	TursoDatabase     string        `json:"TURSO_DATABASE_URL,omitempty"`
	TursoToken        string        `json:"TURSO_AUTH_TOKEN,omitempty"`
	SQLitePath        string        `json:"-"`
	IntentsPath       string        `json:"-"`

	location *time.Location
}

// DefaultConfig is the configuration of a tenant without an env.json.
func DefaultConfig(tenantID string) *Config {
	return &Config{
		TenantID:     tenantID,
		BusinessName: "our office",
		Timezone:     "UTC",
		Hours: BusinessHours{
			Open:            "09:00",
			Close:           "17:00",
			SlotMinutes:     60,
			DurationMinutes: 60,
		},
		SearchHorizonDays: 30,
		FlowVariant:       FlowReview,
		EmergencyMessage:  "If this is an emergency, please hang up and dial 911 right away.",
		TursoEnabled:      config.TursoEnabled,
		TursoDatabase:     config.TursoDatabaseURL,
		TursoToken:        config.TursoAuthToken,
		location:          time.UTC,
	}
}

// ConfigDir is where a tenant's env.json and intents.yaml live.
func ConfigDir(tenantsDir, tenantID string) string {
	return filepath.Join(tenantsDir, tenantID, "config")
}

// LoadTenantConfig loads configuration for a specific tenant from its env.json file.
// The default tenant falls back to built-in defaults when no file exists.
func LoadTenantConfig(tenantsDir, tenantID string) (*Config, error) {
	cfg := DefaultConfig(tenantID)
	configPath := filepath.Join(ConfigDir(tenantsDir, tenantID), "env.json")

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if tenantID != config.DefaultTenantID {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, tenantID)
		}
	case err != nil:
		return nil, fmt.Errorf("could not read tenant config file: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse tenant config json: %w", err)
		}
	}

	// Set computed fields
	cfg.TenantID = tenantID
	cfg.SQLitePath = filepath.Join(tenantsDir, tenantID, "db", config.DatabasePath)
	cfg.IntentsPath = filepath.Join(ConfigDir(tenantsDir, tenantID), "intents.yaml")

	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, err)
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	def := DefaultConfig(c.TenantID)
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	if c.Hours.Open == "" {
		c.Hours.Open = def.Hours.Open
	}
	if c.Hours.Close == "" {
		c.Hours.Close = def.Hours.Close
	}
	if c.Hours.SlotMinutes <= 0 {
		c.Hours.SlotMinutes = def.Hours.SlotMinutes
	}
	if c.Hours.DurationMinutes <= 0 {
		c.Hours.DurationMinutes = def.Hours.DurationMinutes
	}
	open, err := clockMinutes(c.Hours.Open)
	if err != nil {
		return fmt.Errorf("business hours open: %w", err)
	}
	closing, err := clockMinutes(c.Hours.Close)
	if err != nil {
		return fmt.Errorf("business hours close: %w", err)
	}
	if closing <= open {
		return fmt.Errorf("business hours close %s is not after open %s", c.Hours.Close, c.Hours.Open)
	}

	if c.SearchHorizonDays <= 0 {
		c.SearchHorizonDays = def.SearchHorizonDays
	}
	switch c.FlowVariant {
	case FlowReview, FlowConfirm:
	case "":
		c.FlowVariant = FlowReview
	default:
		return fmt.Errorf("unknown flow variant %q", c.FlowVariant)
	}
	switch session.CalendarType(c.CalendarType) {
	case session.CalendarUnset, session.CalendarGoogle, session.CalendarMicrosoft:
	default:
		return fmt.Errorf("unknown calendar type %q", c.CalendarType)
	}
	if c.EmergencyMessage == "" {
		c.EmergencyMessage = def.EmergencyMessage
	}
	if c.BusinessName == "" {
		c.BusinessName = def.BusinessName
	}
	return nil
}

// Location is the tenant's clock.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// PinnedCalendar is the calendar type every booking uses, if set.
func (c *Config) PinnedCalendar() session.CalendarType {
	return session.CalendarType(c.CalendarType)
}

// OpenMinutes and CloseMinutes are minutes after midnight.
func (c *Config) OpenMinutes() int {
	m, _ := clockMinutes(c.Hours.Open)
	return m
}

func (c *Config) CloseMinutes() int {
	m, _ := clockMinutes(c.Hours.Close)
	return m
}

func clockMinutes(hhmm string) (int, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed clock %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("malformed clock %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("malformed clock %q", hhmm)
	}
	return h*60 + m, nil
}

// ListTenants returns the tenant ids with a config directory.
func ListTenants(tenantsDir string) ([]string, error) {
	entries, err := os.ReadDir(tenantsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(ConfigDir(tenantsDir, e.Name())); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
