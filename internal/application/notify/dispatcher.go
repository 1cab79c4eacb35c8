package notify

import (
	"context"
	"sync"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/metrics"
)

// Dispatcher sends summaries in the background so the turn that triggered
// them never waits on email delivery. Failures are logged and counted.
type Dispatcher struct {
	notifier gateways.Notifier
	timeout  time.Duration
	logger   *logging.ChanneledLogger
	wg       sync.WaitGroup
}

func NewDispatcher(notifier gateways.Notifier, timeout time.Duration, logger *logging.ChanneledLogger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{notifier: notifier, timeout: timeout, logger: logger}
}

// Dispatch sends a summary of snap. The caller decides eligibility and marks
// the session as summarized before calling.
func (d *Dispatcher) Dispatch(snap session.Session) {
	if d == nil || d.notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		err := d.notifier.SendSummary(ctx, snap.TenantID, snap.UserInfo, snap.History, snap.LastAppointment)
		if err != nil {
			metrics.SummariesTotal.WithLabelValues("failed").Inc()
			d.logger.Notify().Error("Summary delivery failed",
				"sessionId", logging.SanitizeSessionID(snap.ID),
				"tenantId", snap.TenantID,
				"error", err)
			return
		}
		metrics.SummariesTotal.WithLabelValues("sent").Inc()
		d.logger.Notify().Info("Summary delivered",
			"sessionId", logging.SanitizeSessionID(snap.ID),
			"tenantId", snap.TenantID,
			"messages", len(snap.History),
			"duration", time.Since(start))
	}()
}

// Wait blocks until in-flight dispatches finish. Used at shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
