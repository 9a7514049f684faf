package sms

import (
	"context"
	"fmt"
)

// New builds the sender selected by cfg.Driver.
func New(cfg Config, opts ...Option) (Sender, error) {
	switch cfg.Driver {
	case DriverTwilio:
		t, err := NewTwilio(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	case DriverGateway:
		g, err := NewGateway(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return g, nil
	case DriverDev, "":
		o := buildOptions(cfg.Timeout, opts)
		return NewDev(o.logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func MustNew(cfg Config, opts ...Option) Sender {
	s, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Status asks s for the delivery state of id when the provider supports it.
func Status(ctx context.Context, s Sender, id string) (string, error) {
	sc, ok := s.(StatusChecker)
	if !ok {
		return "", ErrStatusUnsupported
	}
	return sc.Status(ctx, id)
}
