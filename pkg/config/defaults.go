// Package config provides centralized default values for tractcall-go
package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		log.Println("Loading configuration overrides from .env file...")
		// Load never overwrites variables already present in the environment.
		if err := godotenv.Load(); err != nil {
			log.Printf("Failed to load .env: %v", err)
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, redact(key, val), defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var secretKeys = map[string]bool{
	"OPENAI_API_KEY":      true,
	"ANTHROPIC_API_KEY":   true,
	"QDRANT_API_KEY":      true,
	"RESEND_API_KEY":      true,
	"ASSEMBLYAI_API_KEY":  true,
	"JWT_SECRET":          true,
	"ADMIN_PASSWORD_HASH": true,
	"TURSO_AUTH_TOKEN":    true,
	"REDIS_URL":           true,
}

func redact(key, val string) string {
	if secretKeys[key] {
		return "****"
	}
	return val
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	CORSOrigins        string

	// Session Store
	SessionMaxAge        time.Duration
	SessionSweepInterval time.Duration
	MaxSessions          int
	HistoryContextWindow int
	TurnTimeout          time.Duration

	// Collaborator calls
	ExternalCallTimeout time.Duration
	SummaryTimeout      time.Duration
	RetryMaxAttempts    int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration

	// LLM providers
	LLMProvider          string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	OpenAIEmbeddingModel string
	AnthropicAPIKey      string
	AnthropicModel       string

	// Knowledge search
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantUseTLS     bool
	QdrantCollection string
	KnowledgeTopK    int

	// Booking guard
	RedisURL        string
	BookingGuardTTL time.Duration

	// Email
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string

	// Speech
	AssemblyAIAPIKey string

	// Security
	JWTSecret         string
	JWTTokenTTL       time.Duration
	AdminPasswordHash string

	// Tenants and storage
	TenantsDir               string
	DefaultTenantID          string
	DatabasePath             string
	TursoEnabled             bool
	TursoDatabaseURL         string
	TursoAuthToken           string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	SlowQueryThreshold       time.Duration

	// Logging
	LogLevel     string
	LogFormatRaw string
	LogDirectory string
	LogToFile    bool
)

func init() {
	loadEnvFile()

	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second)
	CORSOrigins = getEnvString("CORS_ORIGINS", "*")

	SessionMaxAge = getEnvDuration("SESSION_MAX_AGE", 30*time.Minute)
	SessionSweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute)
	MaxSessions = getEnvInt("MAX_SESSIONS", 10000)
	HistoryContextWindow = getEnvInt("HISTORY_CONTEXT_WINDOW", 10)
	TurnTimeout = getEnvDuration("TURN_TIMEOUT", 45*time.Second)

	ExternalCallTimeout = getEnvDuration("EXTERNAL_CALL_TIMEOUT", 10*time.Second)
	SummaryTimeout = getEnvDuration("SUMMARY_TIMEOUT", 30*time.Second)
	RetryMaxAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", 3)
	RetryBaseDelay = getEnvDuration("RETRY_BASE_DELAY", 500*time.Millisecond)
	RetryMaxDelay = getEnvDuration("RETRY_MAX_DELAY", 4*time.Second)

	LLMProvider = getEnvString("LLM_PROVIDER", "openai")
	OpenAIAPIKey = getEnvString("OPENAI_API_KEY", "")
	OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	OpenAIEmbeddingModel = getEnvString("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small")
	AnthropicAPIKey = getEnvString("ANTHROPIC_API_KEY", "")
	AnthropicModel = getEnvString("ANTHROPIC_MODEL", "claude-3-5-haiku-latest")

	QdrantHost = getEnvString("QDRANT_HOST", "")
	QdrantPort = getEnvInt("QDRANT_PORT", 6334)
	QdrantAPIKey = getEnvString("QDRANT_API_KEY", "")
	QdrantUseTLS = getEnvBool("QDRANT_USE_TLS", false)
	QdrantCollection = getEnvString("QDRANT_COLLECTION", "knowledge")
	KnowledgeTopK = getEnvInt("KNOWLEDGE_TOP_K", 3)

	RedisURL = getEnvString("REDIS_URL", "")
	BookingGuardTTL = getEnvDuration("BOOKING_GUARD_TTL", 10*time.Minute)

	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	EmailFrom = getEnvString("EMAIL_FROM", "noreply@tractcall.local")
	EmailFromName = getEnvString("EMAIL_FROM_NAME", "TractCall")

	AssemblyAIAPIKey = getEnvString("ASSEMBLYAI_API_KEY", "")

	JWTSecret = getEnvString("JWT_SECRET", "")
	JWTTokenTTL = getEnvDuration("JWT_TOKEN_TTL", 12*time.Hour)
	AdminPasswordHash = getEnvString("ADMIN_PASSWORD_HASH", "")

	TenantsDir = getEnvString("TENANTS_DIR", "tenants")
	DefaultTenantID = getEnvString("DEFAULT_TENANT_ID", "default")
	DatabasePath = getEnvString("DATABASE_PATH", "tractcall.db")
	TursoEnabled = getEnvBool("TURSO_ENABLED", false)
	TursoDatabaseURL = getEnvString("TURSO_DATABASE_URL", "")
	TursoAuthToken = getEnvString("TURSO_AUTH_TOKEN", "")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 100*time.Millisecond)

	LogLevel = getEnvString("LOG_LEVEL", "INFO")
	LogFormatRaw = getEnvString("LOG_FORMAT", "json")
	LogDirectory = getEnvString("LOG_DIR", "logs")
	LogToFile = getEnvBool("LOG_TO_FILE", false)
}
