package monitoring

import (
	"testing"
	"time"
)

func TestRecordTurnHealth(t *testing.T) {
	tests := []struct {
		name     string
		turns    int
		failures int
		duration time.Duration
		want     HealthStatus
	}{
		{"fast and clean", 20, 0, 200 * time.Millisecond, HealthHealthy},
		{"slow turns", 5, 0, 5 * time.Second, HealthDegraded},
		{"very slow turns", 5, 0, 15 * time.Second, HealthUnhealthy},
		{"many failures", 20, 10, 200 * time.Millisecond, HealthUnhealthy},
		{"few failures below min turns", 4, 2, 200 * time.Millisecond, HealthHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := NewTenantMonitor()
			for i := 0; i < tt.turns; i++ {
				tm.RecordTurn("default", "knowledge", tt.duration, i >= tt.failures)
			}
			m := tm.GetMetrics("default")
			if m == nil {
				t.Fatal("no metrics recorded")
			}
			if m.HealthStatus != tt.want {
				t.Errorf("status = %s, want %s", m.HealthStatus, tt.want)
			}
			if m.TurnsByRoute["knowledge"] != int64(tt.turns) {
				t.Errorf("turnsByRoute = %d, want %d", m.TurnsByRoute["knowledge"], tt.turns)
			}
		})
	}
}

func TestMetricsAreCopied(t *testing.T) {
	tm := NewTenantMonitor()
	tm.RecordTurn("default", "goodbye", time.Millisecond, true)

	m := tm.GetMetrics("default")
	m.TurnsByRoute["goodbye"] = 99
	if got := tm.GetMetrics("default").TurnsByRoute["goodbye"]; got != 1 {
		t.Errorf("stored count = %d, want 1", got)
	}
}

func TestCleanupDropsIdleTenants(t *testing.T) {
	tm := NewTenantMonitor()
	tm.RecordBooking("default")
	tm.cleanupOldMetrics(time.Now().Add(2 * time.Hour))
	if tm.GetMetrics("default") != nil {
		t.Error("idle tenant should be dropped")
	}
	if got := tm.GetSystemStats()["totalTenants"]; got != 0 {
		t.Errorf("totalTenants = %v, want 0", got)
	}
}
