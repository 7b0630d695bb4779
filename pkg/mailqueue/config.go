package mailqueue

import (
	"fmt"
	"time"
)

// Config holds process-wide queue settings.
// It is copied by value into every component so later changes never reach
// items that are already in flight.
type Config struct {
	MaxRetries       int           `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	Enabled          bool          `env:"QUEUE_ENABLED" envDefault:"true"`
	PollingInterval  time.Duration `env:"QUEUE_POLLING_INTERVAL" envDefault:"1m"`
	InitialDelay     time.Duration `env:"QUEUE_INITIAL_DELAY" envDefault:"10s"`
	SendTimeout      time.Duration `env:"QUEUE_SEND_TIMEOUT" envDefault:"30s"`
	BackoffBase      time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"1m"`
	MaxBackoff       time.Duration `env:"QUEUE_MAX_BACKOFF" envDefault:"0s"`
	BackoffJitter    float64       `env:"QUEUE_BACKOFF_JITTER" envDefault:"0"`
	BatchSize        int           `env:"QUEUE_BATCH_SIZE" envDefault:"0"`
	StuckTimeout     time.Duration `env:"QUEUE_STUCK_TIMEOUT" envDefault:"15m"`
	RecoverySchedule string        `env:"QUEUE_RECOVERY_SCHEDULE" envDefault:"@every 5m"`
	SendRate         float64       `env:"QUEUE_SEND_RATE" envDefault:"0"`
	SendBurst        int           `env:"QUEUE_SEND_BURST" envDefault:"1"`
}

// MaxRetriesLimit caps the configured retry bound so backoff delays stay representable.
const MaxRetriesLimit = 20

// DefaultConfig mirrors the envDefault tags for callers that build Config in code.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		Enabled:          true,
		PollingInterval:  time.Minute,
		InitialDelay:     10 * time.Second,
		SendTimeout:      30 * time.Second,
		BackoffBase:      time.Minute,
		StuckTimeout:     15 * time.Minute,
		RecoverySchedule: "@every 5m",
		SendBurst:        1,
	}
}

// Validate checks value ranges that env parsing cannot express.
func (c Config) Validate() error {
	if c.MaxRetries < 1 || c.MaxRetries > MaxRetriesLimit {
		return fmt.Errorf("%w: QUEUE_MAX_RETRIES must be between 1 and %d, got %d", ErrInvalidConfig, MaxRetriesLimit, c.MaxRetries)
	}
	if c.PollingInterval <= 0 {
		return fmt.Errorf("%w: QUEUE_POLLING_INTERVAL must be positive", ErrInvalidConfig)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("%w: QUEUE_INITIAL_DELAY must not be negative", ErrInvalidConfig)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("%w: QUEUE_SEND_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("%w: QUEUE_BACKOFF_BASE must be positive", ErrInvalidConfig)
	}
	if c.MaxBackoff < 0 {
		return fmt.Errorf("%w: QUEUE_MAX_BACKOFF must not be negative", ErrInvalidConfig)
	}
	if c.BackoffJitter < 0 || c.BackoffJitter > MaxJitter {
		return fmt.Errorf("%w: QUEUE_BACKOFF_JITTER must be between 0 and %.1f", ErrInvalidConfig, MaxJitter)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: QUEUE_BATCH_SIZE must not be negative", ErrInvalidConfig)
	}
	if c.StuckTimeout <= 0 {
		return fmt.Errorf("%w: QUEUE_STUCK_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.StuckTimeout <= c.SendTimeout {
		return fmt.Errorf("%w: QUEUE_STUCK_TIMEOUT (%s) must exceed QUEUE_SEND_TIMEOUT (%s)", ErrInvalidConfig, c.StuckTimeout, c.SendTimeout)
	}
	if c.SendRate < 0 {
		return fmt.Errorf("%w: QUEUE_SEND_RATE must not be negative", ErrInvalidConfig)
	}
	return nil
}

// RetryPolicy builds the backoff policy described by the config.
func (c Config) RetryPolicy() RetryPolicy {
	return ExponentialBackoff{
		Base:     c.BackoffBase,
		MaxDelay: c.MaxBackoff,
		Jitter:   c.BackoffJitter,
	}
}
