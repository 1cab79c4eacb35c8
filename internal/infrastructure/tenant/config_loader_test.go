package tenant

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/pkg/config"
)

func writeEnv(t *testing.T, dir, tenantID, body string) {
	t.Helper()
	cfgDir := ConfigDir(dir, tenantID)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "env.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadTenantConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadTenantConfig(dir, config.DefaultTenantID)
	if err != nil {
		t.Fatalf("LoadTenantConfig() error = %v", err)
	}
	if cfg.FlowVariant != FlowReview {
		t.Errorf("FlowVariant = %q, want %q", cfg.FlowVariant, FlowReview)
	}
	if cfg.OpenMinutes() != 9*60 || cfg.CloseMinutes() != 17*60 {
		t.Errorf("hours = %d-%d", cfg.OpenMinutes(), cfg.CloseMinutes())
	}
	if cfg.Location().String() != "UTC" {
		t.Errorf("Location = %v", cfg.Location())
	}
	if cfg.IntentsPath != filepath.Join(dir, config.DefaultTenantID, "config", "intents.yaml") {
		t.Errorf("IntentsPath = %q", cfg.IntentsPath)
	}
}

func TestLoadTenantConfigUnknownTenant(t *testing.T) {
	_, err := LoadTenantConfig(t.TempDir(), "acme")
	if !errors.Is(err, ErrUnknownTenant) {
		t.Fatalf("err = %v, want ErrUnknownTenant", err)
	}
}

func TestLoadTenantConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeEnv(t, dir, "acme", `{
		"businessName": "Acme Dental",
		"timezone": "America/New_York",
		"businessHours": {"open": "08:30", "close": "12:00", "slotMinutes": 30},
		"calendarType": "google",
		"flowVariant": "confirm",
		"services": ["Cleaning", "Whitening"]
	}`)

	cfg, err := LoadTenantConfig(dir, "acme")
	if err != nil {
		t.Fatalf("LoadTenantConfig() error = %v", err)
	}
	if cfg.BusinessName != "Acme Dental" || cfg.FlowVariant != FlowConfirm {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.PinnedCalendar() != session.CalendarGoogle {
		t.Errorf("PinnedCalendar = %q", cfg.PinnedCalendar())
	}
	if cfg.Hours.DurationMinutes != 60 {
		t.Errorf("DurationMinutes = %d, want default 60", cfg.Hours.DurationMinutes)
	}
	if cfg.OpenMinutes() != 8*60+30 {
		t.Errorf("OpenMinutes = %d", cfg.OpenMinutes())
	}

	ids, err := ListTenants(dir)
	if err != nil || len(ids) != 1 || ids[0] != "acme" {
		t.Errorf("ListTenants() = %v, %v", ids, err)
	}
}

func TestLoadTenantConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"timezone", `{"timezone": "Mars/Olympus"}`},
		{"hours", `{"businessHours": {"open": "17:00", "close": "09:00"}}`},
		{"clock", `{"businessHours": {"open": "nine", "close": "17:00"}}`},
		{"variant", `{"flowVariant": "skip"}`},
		{"calendar", `{"calendarType": "fax"}`},
		{"json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeEnv(t, dir, "acme", tt.body)
			if _, err := LoadTenantConfig(dir, "acme"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
