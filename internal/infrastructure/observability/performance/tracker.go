package performance

import (
	"log/slog"
	"sync"
	"time"
)

// Tracker keeps a bounded window of completed markers and flags slow ones.
type Tracker struct {
	recent  []Marker
	next    int
	full    bool
	mu      sync.RWMutex
	config  *TrackerConfig
	slowLog *slog.Logger
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers    int           `json:"maxMarkers"`
	SlowThreshold time.Duration `json:"slowThreshold"`
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:    1000,
		SlowThreshold: 2 * time.Second,
	}
}

// NewTracker creates a tracker. slowLog may be nil.
func NewTracker(config *TrackerConfig, slowLog *slog.Logger) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	if config.MaxMarkers <= 0 {
		config.MaxMarkers = 1000
	}
	return &Tracker{
		recent:  make([]Marker, config.MaxMarkers),
		config:  config,
		slowLog: slowLog,
	}
}

// StartOperation begins timing an operation for a tenant. Markers start out
// successful; SetError or SetSuccess(false) flips them. A nil tracker hands
// out markers that record nothing.
func (t *Tracker) StartOperation(operation, tenantID string) *Marker {
	return &Marker{
		Operation: operation,
		TenantID:  tenantID,
		StartTime: time.Now(),
		Success:   true,
		tracker:   t,
	}
}

func (t *Tracker) record(m *Marker) {
	t.mu.Lock()
	t.recent[t.next] = *m
	t.recent[t.next].tracker = nil
	t.next = (t.next + 1) % len(t.recent)
	if t.next == 0 {
		t.full = true
	}
	t.mu.Unlock()

	if t.slowLog != nil && m.Duration > t.config.SlowThreshold {
		t.slowLog.Warn("Slow operation",
			"operation", m.Operation,
			"tenantId", m.TenantID,
			"duration", m.Duration,
			"success", m.Success)
	}
}

// GetRecentMetrics returns completed markers for a tenant within the window.
// An empty tenantID matches every tenant.
func (t *Tracker) GetRecentMetrics(tenantID string, within time.Duration) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.next
	if t.full {
		n = len(t.recent)
	}
	cutoff := time.Now().Add(-within)
	var out []Marker
	for i := 0; i < n; i++ {
		m := t.recent[i]
		if tenantID != "" && m.TenantID != tenantID {
			continue
		}
		if m.EndTime.Before(cutoff) {
			continue
		}
		out = append(out, m)
	}
	return out
}
