package queue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithStrictRegistration makes Register fail with ErrHandlerAlreadyRegistered
// instead of replacing an existing handler.
func WithStrictRegistration() DispatcherOption {
	return func(d *Dispatcher) {
		d.strict = true
	}
}

// WithDispatcherLogger sets the logger for the dispatcher.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher maps notification types to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[NotificationType]Handler
	strict   bool
	logger   *slog.Logger
}

// NewDispatcher creates an empty registry.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[NotificationType]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds handler to t. By default the last registration wins.
// Registering while envelopes are in flight only affects later dispatches.
func (d *Dispatcher) Register(t NotificationType, h Handler) error {
	if t == "" {
		return fmt.Errorf("%w: empty type", ErrInvalidType)
	}
	if h == nil {
		return ErrNilHandler
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[t]; exists {
		if d.strict {
			return fmt.Errorf("%w: %s", ErrHandlerAlreadyRegistered, t)
		}
		d.logger.Warn("replacing notification handler", logger.NotificationType(string(t)))
	}
	d.handlers[t] = h
	return nil
}

// Has reports whether a handler is registered for t.
func (d *Dispatcher) Has(t NotificationType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[t]
	return ok
}

// Registered returns the registered types in sorted order.
func (d *Dispatcher) Registered() []NotificationType {
	d.mu.RLock()
	types := make([]NotificationType, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	d.mu.RUnlock()
	slices.Sort(types)
	return types
}

// Dispatch invokes the handler registered for env.Type exactly once with a
// private copy of env.Data. Handler errors and panics come back wrapped in
// ErrDeliveryFailed.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) (err error) {
	d.mu.RLock()
	h, ok := d.handlers[env.Type]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnregisteredType, env.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %w: %v", ErrDeliveryFailed, ErrHandlerPanic, r)
		}
	}()

	if herr := h.Deliver(ctx, cloneData(env.Data)); herr != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, herr)
	}
	return nil
}
