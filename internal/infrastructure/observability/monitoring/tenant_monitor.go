// Package monitoring provides per-tenant health tracking for live call
// traffic, feeding the health endpoint and raising alerts on degradation.
package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// TenantMetrics represents the call-handling health of a single tenant
type TenantMetrics struct {
	TenantID    string    `json:"tenantId"`
	LastUpdated time.Time `json:"lastUpdated"`

	// Turn performance metrics
	TotalTurns   int64            `json:"totalTurns"`
	FailedTurns  int64            `json:"failedTurns"`
	AvgTurnTime  time.Duration    `json:"avgTurnTime"`
	MaxTurnTime  time.Duration    `json:"maxTurnTime"`
	ErrorRate    float64          `json:"errorRate"`
	TurnsByRoute map[string]int64 `json:"turnsByRoute"`

	Bookings int64 `json:"bookings"`

	// Real-time connection metrics
	ListenerConnections int `json:"listenerConnections"`

	// Health status
	HealthStatus    HealthStatus `json:"healthStatus"`
	LastHealthCheck time.Time    `json:"lastHealthCheck"`
}

// HealthStatus represents the health state of a tenant
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// HealthThresholds defines the thresholds for determining tenant health
type HealthThresholds struct {
	WarningTurnTime  time.Duration `json:"warningTurnTime"`
	CriticalTurnTime time.Duration `json:"criticalTurnTime"`

	WarningErrorRate  float64 `json:"warningErrorRate"`
	CriticalErrorRate float64 `json:"criticalErrorRate"`

	// Below this many turns the error rate is not trusted.
	MinTurns int64 `json:"minTurns"`
}

// DefaultHealthThresholds returns sensible default health thresholds
func DefaultHealthThresholds() *HealthThresholds {
	return &HealthThresholds{
		WarningTurnTime:   3 * time.Second,
		CriticalTurnTime:  10 * time.Second,
		WarningErrorRate:  0.05,
		CriticalErrorRate: 0.20,
		MinTurns:          10,
	}
}

// AlertCallback is called when a tenant's health worsens
type AlertCallback func(tenantID string, alert *TenantAlert)

// TenantAlert represents a health alert for a tenant
type TenantAlert struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenantId"`
	Timestamp time.Time    `json:"timestamp"`
	Severity  string       `json:"severity"`
	Message   string       `json:"message"`
	OldStatus HealthStatus `json:"oldStatus"`
	NewStatus HealthStatus `json:"newStatus"`
}

// TenantMonitor tracks call-handling metrics for every active tenant
type TenantMonitor struct {
	metrics         map[string]*TenantMetrics
	thresholds      *HealthThresholds
	alertCallbacks  []AlertCallback
	mu              sync.RWMutex
	started         time.Time
	retention       time.Duration
	cleanupInterval time.Duration
}

// NewTenantMonitor creates a new tenant monitor
func NewTenantMonitor() *TenantMonitor {
	return &TenantMonitor{
		metrics:         make(map[string]*TenantMetrics),
		thresholds:      DefaultHealthThresholds(),
		started:         time.Now(),
		retention:       time.Hour,
		cleanupInterval: 10 * time.Minute,
	}
}

// Start drops metrics of idle tenants until ctx is cancelled.
func (tm *TenantMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(tm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tm.cleanupOldMetrics(time.Now())
		}
	}
}

// UpdateMetrics applies update to a tenant's metrics and re-evaluates health.
func (tm *TenantMonitor) UpdateMetrics(tenantID string, update func(*TenantMetrics)) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, exists := tm.metrics[tenantID]; !exists {
		tm.metrics[tenantID] = &TenantMetrics{
			TenantID:     tenantID,
			HealthStatus: HealthUnknown,
			TurnsByRoute: make(map[string]int64),
		}
	}

	update(tm.metrics[tenantID])
	tm.metrics[tenantID].LastUpdated = time.Now()

	tm.updateHealthStatus(tenantID)
}

// GetMetrics returns a copy of a tenant's metrics, or nil if none are held.
func (tm *TenantMonitor) GetMetrics(tenantID string) *TenantMetrics {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if metrics, exists := tm.metrics[tenantID]; exists {
		return copyMetrics(metrics)
	}
	return nil
}

func copyMetrics(m *TenantMetrics) *TenantMetrics {
	c := *m
	c.TurnsByRoute = make(map[string]int64, len(m.TurnsByRoute))
	for k, v := range m.TurnsByRoute {
		c.TurnsByRoute[k] = v
	}
	return &c
}

// RecordTurn records one dialogue turn.
func (tm *TenantMonitor) RecordTurn(tenantID, route string, duration time.Duration, success bool) {
	tm.UpdateMetrics(tenantID, func(metrics *TenantMetrics) {
		metrics.TotalTurns++
		if !success {
			metrics.FailedTurns++
		}
		if route != "" {
			metrics.TurnsByRoute[route]++
		}

		// Exponential moving average with alpha = 0.1
		if metrics.TotalTurns == 1 {
			metrics.AvgTurnTime = duration
		} else {
			metrics.AvgTurnTime = time.Duration(float64(metrics.AvgTurnTime)*0.9 + float64(duration)*0.1)
		}
		if duration > metrics.MaxTurnTime {
			metrics.MaxTurnTime = duration
		}

		metrics.ErrorRate = float64(metrics.FailedTurns) / float64(metrics.TotalTurns)
	})
}

// RecordBooking records an appointment created during a turn.
func (tm *TenantMonitor) RecordBooking(tenantID string) {
	tm.UpdateMetrics(tenantID, func(metrics *TenantMetrics) {
		metrics.Bookings++
	})
}

// SetListenerConnections records the live SSE listener count for a tenant.
func (tm *TenantMonitor) SetListenerConnections(tenantID string, n int) {
	tm.UpdateMetrics(tenantID, func(metrics *TenantMetrics) {
		metrics.ListenerConnections = n
	})
}

// updateHealthStatus must be called with tm.mu held.
func (tm *TenantMonitor) updateHealthStatus(tenantID string) {
	metrics := tm.metrics[tenantID]
	if metrics == nil {
		return
	}

	oldStatus := metrics.HealthStatus
	newStatus := tm.calculateHealthStatus(metrics)
	if oldStatus == newStatus {
		return
	}
	metrics.HealthStatus = newStatus
	metrics.LastHealthCheck = time.Now()

	if newStatus != HealthDegraded && newStatus != HealthUnhealthy {
		return
	}
	severity := "warning"
	if newStatus == HealthUnhealthy {
		severity = "critical"
	}
	tm.triggerAlert(&TenantAlert{
		ID:        generateAlertID(),
		TenantID:  tenantID,
		Timestamp: time.Now(),
		Severity:  severity,
		Message:   fmt.Sprintf("Tenant health status changed from %s to %s", oldStatus, newStatus),
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
}

func (tm *TenantMonitor) calculateHealthStatus(metrics *TenantMetrics) HealthStatus {
	if metrics.TotalTurns == 0 {
		return HealthUnknown
	}
	criticalIssues := 0
	warningIssues := 0

	if metrics.AvgTurnTime > tm.thresholds.CriticalTurnTime {
		criticalIssues++
	} else if metrics.AvgTurnTime > tm.thresholds.WarningTurnTime {
		warningIssues++
	}

	if metrics.TotalTurns >= tm.thresholds.MinTurns {
		if metrics.ErrorRate > tm.thresholds.CriticalErrorRate {
			criticalIssues++
		} else if metrics.ErrorRate > tm.thresholds.WarningErrorRate {
			warningIssues++
		}
	}

	switch {
	case criticalIssues > 0:
		return HealthUnhealthy
	case warningIssues > 0:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

func (tm *TenantMonitor) cleanupOldMetrics(now time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	cutoff := now.Add(-tm.retention)
	for tenantID, metrics := range tm.metrics {
		if metrics.LastUpdated.Before(cutoff) {
			delete(tm.metrics, tenantID)
		}
	}
}

// AddAlertCallback adds a callback function for alert notifications
func (tm *TenantMonitor) AddAlertCallback(callback AlertCallback) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.alertCallbacks = append(tm.alertCallbacks, callback)
}

func (tm *TenantMonitor) triggerAlert(alert *TenantAlert) {
	for _, callback := range tm.alertCallbacks {
		go callback(alert.TenantID, alert)
	}
}

// GetSystemStats returns overall system statistics
func (tm *TenantMonitor) GetSystemStats() map[string]any {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	byStatus := map[HealthStatus]int{}
	var totalTurns int64
	for _, metrics := range tm.metrics {
		byStatus[metrics.HealthStatus]++
		totalTurns += metrics.TotalTurns
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]any{
		"monitorUptime":     time.Since(tm.started).String(),
		"totalTenants":      len(tm.metrics),
		"healthyTenants":    byStatus[HealthHealthy],
		"degradedTenants":   byStatus[HealthDegraded],
		"unhealthyTenants":  byStatus[HealthUnhealthy],
		"totalTurns":        totalTurns,
		"allocatedMemoryMB": memStats.Alloc / (1024 * 1024),
		"goroutineCount":    runtime.NumGoroutine(),
	}
}

func generateAlertID() string {
	return fmt.Sprintf("alert_%d", time.Now().UnixNano())
}
