package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/broker"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/sms"
)

// Storage drivers selected by STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config aggregates the settings of every component. Connection settings
// of the selected storage and of the redis broker are loaded separately so
// their required variables only apply when they are used.
type Config struct {
	Log      logger.Config
	Broker   broker.Config
	Queue    queue.Config
	HTTP     httpserver.Config
	Email    email.Config
	SMS      sms.Config
	Realtime RealtimeConfig

	StoreDriver      string        `env:"STORE_DRIVER" envDefault:"memory"`
	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"2s"`
	StrictHandlers   bool          `env:"STRICT_HANDLER_REGISTRATION" envDefault:"false"`
	MetricsNamespace string        `env:"METRICS_NAMESPACE" envDefault:"notifykit"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// TrustedIPHeaders are read for the client address; empty trusts RemoteAddr only.
	TrustedIPHeaders []string `env:"HTTP_TRUSTED_IP_HEADERS" envDefault:"X-Forwarded-For,X-Real-IP" envSeparator:","`
}

type RealtimeConfig struct {
	SendBuffer   int           `env:"REALTIME_SEND_BUFFER" envDefault:"16"`
	PingInterval time.Duration `env:"REALTIME_PING_INTERVAL" envDefault:"30s"`
}

// Validate implements config.Validator.
func (c Config) Validate() error {
	var errs []error
	if err := c.Broker.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("broker: %w", err))
	}
	if err := c.Queue.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("queue: %w", err))
	}
	switch c.StoreDriver {
	case StoreMemory, StoreMongo, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", notifications.ErrUnknownDriver, c.StoreDriver))
	}
	if c.ReadinessTimeout <= 0 {
		errs = append(errs, errors.New("readiness timeout must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	return errors.Join(errs...)
}
