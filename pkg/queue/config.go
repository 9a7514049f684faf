package queue

import (
	"errors"
	"time"
)

// Config holds the lane layout and retry policy of the pipeline.
type Config struct {
	PrimaryLane    string        `env:"QUEUE_PRIMARY_LANE" envDefault:"notifications"`
	RetryLane      string        `env:"QUEUE_RETRY_LANE" envDefault:"notifications_retry"`
	DeadLane       string        `env:"QUEUE_DEAD_LANE" envDefault:"notifications_dead"`
	MaxAttempts    int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay     time.Duration `env:"QUEUE_RETRY_DELAY" envDefault:"5s"`
	HandlerTimeout time.Duration `env:"QUEUE_HANDLER_TIMEOUT" envDefault:"30s"`
	DeadLetters    bool          `env:"QUEUE_DEAD_LETTERS" envDefault:"true"`
}

// DefaultConfig returns the values used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		PrimaryLane:    "notifications",
		RetryLane:      "notifications_retry",
		DeadLane:       "notifications_dead",
		MaxAttempts:    3,
		RetryDelay:     5 * time.Second,
		HandlerTimeout: 30 * time.Second,
		DeadLetters:    true,
	}
}

// Validate implements config.Validator.
func (c Config) Validate() error {
	var errs []error
	if c.PrimaryLane == "" || c.RetryLane == "" {
		errs = append(errs, errors.New("primary and retry lanes are required"))
	}
	if c.PrimaryLane == c.RetryLane {
		errs = append(errs, errors.New("retry lane must differ from primary lane"))
	}
	if c.DeadLetters && (c.DeadLane == "" || c.DeadLane == c.PrimaryLane || c.DeadLane == c.RetryLane) {
		errs = append(errs, errors.New("dead lane must be set and distinct when dead letters are enabled"))
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, errors.New("max attempts must not be negative"))
	}
	if c.RetryDelay <= 0 {
		errs = append(errs, errors.New("retry delay must be positive"))
	}
	if c.HandlerTimeout <= 0 {
		errs = append(errs, errors.New("handler timeout must be positive"))
	}
	return errors.Join(errs...)
}
