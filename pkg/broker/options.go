package broker

import (
	"log/slog"
	"time"
)

// Option configures a broker implementation.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	prefetch     int
	pollInterval time.Duration
	consumerID   string
}

func defaultOptions() *options {
	return &options{
		logger:       slog.Default(),
		prefetch:     1,
		pollInterval: 250 * time.Millisecond,
	}
}

// WithLogger sets the logger used for connection and consumer events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPrefetch sets how many unsettled deliveries the AMQP channel may hold.
func WithPrefetch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.prefetch = n
		}
	}
}

// WithPollInterval sets how often the Redis broker promotes due delayed
// messages.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithConsumerID names the Redis processing list owned by this process.
func WithConsumerID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.consumerID = id
		}
	}
}
