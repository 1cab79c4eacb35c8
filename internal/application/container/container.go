// Package container provides dependency injection for all singleton services
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/appointment"
	"github.com/AtRiskMedia/tractcall-go/internal/application/dialogue"
	"github.com/AtRiskMedia/tractcall-go/internal/application/extraction"
	"github.com/AtRiskMedia/tractcall-go/internal/application/identity"
	"github.com/AtRiskMedia/tractcall-go/internal/application/notify"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/caching"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/caching/cleanup"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/caching/stores"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/calendar"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/knowledge"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/llm"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/monitoring"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/speech"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/tractcall-go/pkg/config"
)

// closer is anything the container must release at shutdown.
type closer interface {
	Close() error
}

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Dialogue core
	Orchestrator *dialogue.Orchestrator
	Appointments *appointment.Engine
	Identity     *identity.Collector
	Extraction   *extraction.Service

	// Collaborators
	Calendar    gateways.Calendar
	Knowledge   gateways.KnowledgeSearch
	Answerer    gateways.Answerer
	Guard       gateways.BookingGuard
	Notifier    *notify.Service
	Dispatcher  *notify.Dispatcher
	Transcriber *speech.AssemblyAITranscriber // nil without an AssemblyAI key

	// Infrastructure Dependencies
	TenantManager *tenant.Manager
	Detector      *tenant.Detector
	Sessions      *stores.SessionsStore
	CleanupWorker *cleanup.Worker
	Broadcaster   *messaging.SSEBroadcaster
	Monitor       *monitoring.TenantMonitor
	Logger        *logging.ChanneledLogger
	PerfTracker   *performance.Tracker

	closers []closer
}

// Options tune container construction. The zero value builds the server
// configuration from pkg/config.
type Options struct {
	// WithDatabase opens tenant calendar databases. The chat REPL and
	// tests may run without one only when Calendar is supplied.
	WithDatabase bool
	// Calendar overrides the SQL calendar.
	Calendar gateways.Calendar
	// Now overrides the wall clock.
	Now func() time.Time
}

// NewContainer creates and wires all singleton services
func NewContainer(ctx context.Context, logger *logging.ChanneledLogger, opts Options) (*Container, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	policy := retry.DefaultPolicy()

	c := &Container{Logger: logger}

	c.PerfTracker = performance.NewTracker(&performance.TrackerConfig{
		MaxMarkers:    1000,
		SlowThreshold: config.SlowQueryThreshold,
	}, logger.Perf())

	c.TenantManager = tenant.NewManager(config.TenantsDir, opts.WithDatabase, logger)
	c.Detector = tenant.NewDetector(c.TenantManager)
	c.Monitor = monitoring.NewTenantMonitor()
	c.Monitor.AddAlertCallback(func(tenantID string, alert *monitoring.TenantAlert) {
		logger.System().Warn(alert.Message, "tenantId", tenantID, "severity", alert.Severity)
	})

	// Slot extraction: LLM first, deterministic fallback always available.
	completer := llm.NewFromConfig()
	if completer == nil {
		logger.Startup().Warn("No LLM provider configured, using deterministic extraction only", "provider", config.LLMProvider)
	} else {
		logger.Startup().Info("LLM provider configured", "provider", completer.Name())
	}
	c.Extraction = extraction.NewService(completer, policy, config.ExternalCallTimeout, logger)

	// Calendar
	c.Calendar = opts.Calendar
	if c.Calendar == nil {
		c.Calendar = calendar.NewSQLCalendar(c.TenantManager, now, c.PerfTracker, logger)
	}

	// Duplicate booking guard
	if config.RedisURL != "" {
		guard, err := caching.NewRedisBookingGuard(ctx, config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect booking guard: %w", err)
		}
		c.Guard = guard
		c.closers = append(c.closers, guard)
		logger.Startup().Info("Booking guard using Redis")
	} else {
		c.Guard = caching.NewMemoryBookingGuard(now)
		logger.Startup().Info("Booking guard using process memory")
	}

	// Knowledge base
	if config.QdrantHost != "" && config.OpenAIAPIKey != "" {
		embedder := llm.NewOpenAIEmbedder(config.OpenAIAPIKey, config.OpenAIBaseURL, config.OpenAIEmbeddingModel)
		searcher, err := knowledge.NewQdrantSearcher(knowledge.QdrantConfig{
			Host:       config.QdrantHost,
			Port:       config.QdrantPort,
			APIKey:     config.QdrantAPIKey,
			UseTLS:     config.QdrantUseTLS,
			Collection: config.QdrantCollection,
			TopK:       config.KnowledgeTopK,
		}, embedder, policy)
		if err != nil {
			return nil, fmt.Errorf("failed to create knowledge searcher: %w", err)
		}
		c.Knowledge = searcher
		c.closers = append(c.closers, searcher)
		logger.Startup().Info("Knowledge search using Qdrant", "host", config.QdrantHost, "collection", config.QdrantCollection)
	} else {
		c.Knowledge = knowledge.NewStaticSearcher(config.TenantsDir, config.KnowledgeTopK)
		logger.Startup().Info("Knowledge search using tenant knowledge files", "dir", config.TenantsDir)
	}
	c.Answerer = knowledge.NewAnswerer(completer, policy, config.ExternalCallTimeout, logger.Knowledge())

	// Summaries
	var sender email.Sender
	if resendClient, err := email.NewResendClient(); err == nil {
		sender = resendClient
	} else {
		logger.Startup().Warn("Email delivery disabled, summaries will only be logged", "reason", err.Error())
		sender = email.LogSender{Logf: func(format string, args ...any) {
			logger.Notify().Info(fmt.Sprintf(format, args...))
		}}
	}
	c.Notifier = notify.NewService(sender, c.TenantManager, policy)
	c.Dispatcher = notify.NewDispatcher(c.Notifier, config.SummaryTimeout, logger)

	// Sessions
	c.Sessions = stores.NewSessionsStore(config.MaxSessions, logger)
	c.Sessions.SetClock(now)
	c.Sessions.OnEvict(func(s session.Session) {
		if s.NeedsSummary() {
			c.Dispatcher.Dispatch(s)
		}
	})
	c.CleanupWorker = cleanup.NewWorker(c.Sessions, c.Dispatcher, cleanup.NewConfig(), logger)

	// Dialogue core
	c.Appointments = appointment.NewEngine(appointment.Options{
		Calendar:      c.Calendar,
		Guard:         c.Guard,
		Extractor:     c.Extraction,
		Tenants:       c.TenantManager,
		Now:           now,
		Policy:        policy,
		CallTimeout:   config.ExternalCallTimeout,
		GuardTTL:      config.BookingGuardTTL,
		HistoryWindow: config.HistoryContextWindow,
		Logger:        logger,
	})
	c.Identity = identity.NewCollector(c.Extraction, config.HistoryContextWindow, now, logger)

	orchestrator, err := dialogue.NewOrchestrator(dialogue.Options{
		Store:       c.Sessions,
		Tenants:     c.TenantManager,
		Booker:      c.Appointments,
		Identity:    c.Identity,
		Knowledge:   c.Knowledge,
		Answerer:    c.Answerer,
		Summaries:   c.Dispatcher,
		Now:         now,
		TurnTimeout: config.TurnTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	c.Orchestrator = orchestrator

	// Transport support
	c.Broadcaster = messaging.NewSSEBroadcaster(logger)
	c.Transcriber = speech.NewAssemblyAITranscriber(config.AssemblyAIAPIKey, logger)
	if c.Transcriber == nil {
		logger.Startup().Info("Speech transcription disabled, ASSEMBLYAI_API_KEY not set")
	}

	return c, nil
}

// Close waits for in-flight summaries and releases external connections.
func (c *Container) Close() error {
	c.Dispatcher.Wait()
	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
