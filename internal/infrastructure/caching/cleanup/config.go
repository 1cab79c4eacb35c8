package cleanup

import (
	"time"

	"github.com/AtRiskMedia/tractcall-go/pkg/config"
)

// Config holds sweep worker configuration, sourced from the central config package.
type Config struct {
	SweepInterval time.Duration
	SessionMaxAge time.Duration
}

// NewConfig reads values from the already-initialized variables in pkg/config.
func NewConfig() *Config {
	return &Config{
		SweepInterval: config.SessionSweepInterval,
		SessionMaxAge: config.SessionMaxAge,
	}
}
