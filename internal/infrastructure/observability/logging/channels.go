// Package logging provides structured logging channels for the voice dialogue
// service, with tenant and session correlation.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Channel represents a logical logging channel for different system components
type Channel string

const (
	// System channels
	ChannelSystem   Channel = "system"
	ChannelStartup  Channel = "startup"
	ChannelShutdown Channel = "shutdown"

	// Dialogue channels
	ChannelDialogue    Channel = "dialogue"    // Orchestrator routing per turn
	ChannelAppointment Channel = "appointment" // Booking state machine
	ChannelIdentity    Channel = "identity"    // Name/email collection
	ChannelExtraction  Channel = "extraction"  // Slot extraction backends

	// Collaborator channels
	ChannelCalendar  Channel = "calendar"
	ChannelKnowledge Channel = "knowledge"
	ChannelNotify    Channel = "notify"
	ChannelSpeech    Channel = "speech"

	// Infrastructure channels
	ChannelCache    Channel = "cache"
	ChannelDatabase Channel = "database"
	ChannelTenant   Channel = "tenant"
	ChannelAuth     Channel = "auth"
	ChannelHTTP     Channel = "http"

	ChannelPerf Channel = "performance"
)

var allChannels = []Channel{
	ChannelSystem, ChannelStartup, ChannelShutdown,
	ChannelDialogue, ChannelAppointment, ChannelIdentity, ChannelExtraction,
	ChannelCalendar, ChannelKnowledge, ChannelNotify, ChannelSpeech,
	ChannelCache, ChannelDatabase, ChannelTenant, ChannelAuth, ChannelHTTP,
	ChannelPerf,
}

// ChanneledLogger provides structured logging with multiple channels
type ChanneledLogger struct {
	channels map[Channel]*slog.Logger
	config   *LoggerConfig
	files    []*os.File
	mu       sync.RWMutex
}

// LoggerConfig contains configuration options for the channeled logger
type LoggerConfig struct {
	OutputToFile    bool   `json:"outputToFile"`
	OutputToConsole bool   `json:"outputToConsole"`
	LogDirectory    string `json:"logDirectory"`
	JSONFormat      bool   `json:"jsonFormat"`
	IncludeSource   bool   `json:"includeSource"`

	DefaultLevel  slog.Level             `json:"defaultLevel"`
	ChannelLevels map[Channel]slog.Level `json:"channelLevels"`

	// Writer overrides console output when set; tests use it to capture logs.
	Writer io.Writer `json:"-"`
}

// DefaultLoggerConfig returns a sensible default configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: true,
		LogDirectory:    "logs",
		JSONFormat:      true,
		IncludeSource:   false,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// ParseLevel maps a LOG_LEVEL string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE", "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewChanneledLogger creates a new channeled logger with the given configuration
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	logger := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		config:   config,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	for _, channel := range allChannels {
		channelLogger, err := logger.createChannelLogger(channel)
		if err != nil {
			logger.Close()
			return nil, fmt.Errorf("failed to create logger for channel %s: %w", channel, err)
		}
		logger.channels[channel] = channelLogger
	}

	return logger, nil
}

// NewDiscard returns a logger whose channels drop everything. Used by tests
// and by the chat REPL when logs would interleave with the conversation.
func NewDiscard() *ChanneledLogger {
	l, _ := NewChanneledLogger(&LoggerConfig{
		OutputToConsole: true,
		Writer:          io.Discard,
		DefaultLevel:    slog.LevelError + 4,
	})
	return l
}

func (cl *ChanneledLogger) createChannelLogger(channel Channel) (*slog.Logger, error) {
	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer
	if cl.config.OutputToConsole {
		if cl.config.Writer != nil {
			writers = append(writers, cl.config.Writer)
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	if cl.config.OutputToFile {
		path := filepath.Join(cl.config.LogDirectory, fmt.Sprintf("%s.log", string(channel)))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		cl.files = append(cl.files, file)
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cl.config.IncludeSource,
	}

	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	return slog.New(handler).With(slog.String("channel", string(channel))), nil
}

func (cl *ChanneledLogger) System() *slog.Logger      { return cl.GetChannel(ChannelSystem) }
func (cl *ChanneledLogger) Startup() *slog.Logger     { return cl.GetChannel(ChannelStartup) }
func (cl *ChanneledLogger) Shutdown() *slog.Logger    { return cl.GetChannel(ChannelShutdown) }
func (cl *ChanneledLogger) Dialogue() *slog.Logger    { return cl.GetChannel(ChannelDialogue) }
func (cl *ChanneledLogger) Appointment() *slog.Logger { return cl.GetChannel(ChannelAppointment) }
func (cl *ChanneledLogger) Identity() *slog.Logger    { return cl.GetChannel(ChannelIdentity) }
func (cl *ChanneledLogger) Extraction() *slog.Logger  { return cl.GetChannel(ChannelExtraction) }
func (cl *ChanneledLogger) Calendar() *slog.Logger    { return cl.GetChannel(ChannelCalendar) }
func (cl *ChanneledLogger) Knowledge() *slog.Logger   { return cl.GetChannel(ChannelKnowledge) }
func (cl *ChanneledLogger) Notify() *slog.Logger      { return cl.GetChannel(ChannelNotify) }
func (cl *ChanneledLogger) Speech() *slog.Logger      { return cl.GetChannel(ChannelSpeech) }
func (cl *ChanneledLogger) Cache() *slog.Logger       { return cl.GetChannel(ChannelCache) }
func (cl *ChanneledLogger) Database() *slog.Logger    { return cl.GetChannel(ChannelDatabase) }
func (cl *ChanneledLogger) Tenant() *slog.Logger      { return cl.GetChannel(ChannelTenant) }
func (cl *ChanneledLogger) Auth() *slog.Logger        { return cl.GetChannel(ChannelAuth) }
func (cl *ChanneledLogger) HTTP() *slog.Logger        { return cl.GetChannel(ChannelHTTP) }
func (cl *ChanneledLogger) Perf() *slog.Logger        { return cl.GetChannel(ChannelPerf) }

// GetChannel returns a logger for a specific channel
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	if logger, exists := cl.channels[channel]; exists {
		return logger
	}
	return cl.channels[ChannelSystem]
}

// SetChannelLevel rebuilds one channel at a new level.
func (cl *ChanneledLogger) SetChannelLevel(channel Channel, level slog.Level) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.config.ChannelLevels == nil {
		cl.config.ChannelLevels = make(map[Channel]slog.Level)
	}
	cl.config.ChannelLevels[channel] = level
	l, err := cl.createChannelLogger(channel)
	if err != nil {
		return err
	}
	cl.channels[channel] = l
	return nil
}

// WithSession returns a channel logger carrying tenant and (truncated) session ids.
func (cl *ChanneledLogger) WithSession(channel Channel, tenantID, sessionID string) *slog.Logger {
	return cl.GetChannel(channel).With(
		slog.String("tenantId", tenantID),
		slog.String("sessionId", SanitizeSessionID(sessionID)),
	)
}

// LogError logs an error with appropriate context and channel
func (cl *ChanneledLogger) LogError(channel Channel, operation string, err error, tenantID string, metadata map[string]any) {
	logger := cl.GetChannel(channel).With(
		slog.String("operation", operation),
		slog.String("tenantId", tenantID),
		slog.String("error", err.Error()),
	)
	for key, value := range metadata {
		logger = logger.With(slog.Any(key, value))
	}
	logger.Error("Operation failed")
}

// LogStartupPhase logs application startup phases
func (cl *ChanneledLogger) LogStartupPhase(phase string, duration time.Duration, success bool) {
	logger := cl.Startup().With(
		slog.String("phase", phase),
		slog.Duration("duration", duration),
		slog.Bool("success", success),
	)
	if success {
		logger.Info("Startup phase completed")
	} else {
		logger.Error("Startup phase failed")
	}
}

// Close releases any open log files.
func (cl *ChanneledLogger) Close() {
	for _, f := range cl.files {
		_ = f.Close()
	}
	cl.files = nil
}

// SanitizeSessionID keeps only a short prefix of a session id for logs.
func SanitizeSessionID(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID
	}
	return sessionID[:8] + "..."
}
