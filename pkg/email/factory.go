package email

import (
	"fmt"
	"log/slog"
)

// New builds the sender selected by cfg.Driver.
func New(cfg Config, log *slog.Logger) (Sender, error) {
	switch cfg.Driver {
	case DriverPostmark:
		return NewPostmarkClient(cfg)
	case DriverSMTP:
		return NewSMTPSender(cfg)
	case DriverDev, "":
		return NewDevSender(cfg.DevDir, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// MustNew is New that panics on error. Use it during startup only.
func MustNew(cfg Config, log *slog.Logger) Sender {
	s, err := New(cfg, log)
	if err != nil {
		panic(err)
	}
	return s
}
