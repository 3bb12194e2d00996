package mockserver

import "time"

const (
	defaultHost     = "127.0.0.1"
	defaultDelay    = 500 * time.Millisecond
	defaultDuration = 15 * time.Second
)

type Config struct {
	Host          string        `env:"MOCK_SERVER_HOST"` // Interface to bind, the port is always ephemeral
	WaitDelay     time.Duration `env:"WAIT_DELAY"`       // Default Delay for the interactions/wait endpoint
	WaitDuration  time.Duration `env:"WAIT_DURATION"`    // Default Duration for the interactions/wait endpoint
	RecordHistory bool          `env:"RECORD_HISTORY"`   // Keep every matched request, not only the last one
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE"`   // Time given to in-flight requests on Stop
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.WaitDelay == 0 {
		c.WaitDelay = defaultDelay
	}
	if c.WaitDuration == 0 {
		c.WaitDuration = defaultDuration
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	return c
}
