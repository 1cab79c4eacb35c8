// Package cleanup provides the background session sweep worker
package cleanup

import (
	"context"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
)

// Sweeper is the part of the session store the worker needs.
type Sweeper interface {
	Sweep(maxAge time.Duration, beforeDelete func(session.Session)) []string
}

// SummaryDispatcher sends a conversation summary without blocking.
type SummaryDispatcher interface {
	Dispatch(snapshot session.Session)
}

// Worker periodically expires sessions, dispatching summaries for the ones
// that earned one.
type Worker struct {
	store      Sweeper
	dispatcher SummaryDispatcher
	config     *Config
	logger     *logging.ChanneledLogger
}

// NewWorker creates a new sweep worker with injected configuration.
// dispatcher may be nil.
func NewWorker(store Sweeper, dispatcher SummaryDispatcher, config *Config, logger *logging.ChanneledLogger) *Worker {
	if config == nil {
		config = NewConfig()
	}
	return &Worker{
		store:      store,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	w.logger.Cache().Info("Session sweep worker started",
		"interval", w.config.SweepInterval,
		"maxAge", w.config.SessionMaxAge)

	for {
		select {
		case <-ctx.Done():
			w.logger.Cache().Info("Session sweep worker stopping")
			return
		case <-ticker.C:
			w.SweepOnce()
		}
	}
}

// SweepOnce performs a single sweep and returns the deleted session ids.
func (w *Worker) SweepOnce() []string {
	start := time.Now()
	ids := w.store.Sweep(w.config.SessionMaxAge, func(s session.Session) {
		if w.dispatcher != nil && s.NeedsSummary() {
			w.dispatcher.Dispatch(s)
		}
	})
	if len(ids) > 0 {
		w.logger.Cache().Debug("Sweep cycle completed",
			"deleted", len(ids),
			"duration", time.Since(start))
	}
	return ids
}
