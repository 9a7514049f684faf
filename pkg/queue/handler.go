package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type (
	// Handler delivers the data of one envelope through a channel.
	Handler interface {
		Deliver(ctx context.Context, data map[string]any) error
	}

	// HandlerFunc adapts a plain function to Handler.
	HandlerFunc func(ctx context.Context, data map[string]any) error

	// TypedHandlerFunc receives envelope data decoded into T.
	TypedHandlerFunc[T any] func(ctx context.Context, payload T) error
)

// Deliver calls f.
func (f HandlerFunc) Deliver(ctx context.Context, data map[string]any) error {
	return f(ctx, data)
}

// NewTypedHandler decodes envelope data into T before calling fn.
// Data that does not fit T is a permanent failure.
func NewTypedHandler[T any](fn TypedHandlerFunc[T]) Handler {
	return &typedHandler[T]{fn: fn}
}

type typedHandler[T any] struct {
	fn TypedHandlerFunc[T]
}

func (h *typedHandler[T]) Deliver(ctx context.Context, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return Permanent(fmt.Errorf("encode payload: %w", err))
	}
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("decode payload into %T: %w", payload, err))
	}
	return h.fn(ctx, payload)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, such as missing vendor
// credentials or a payload that can never be delivered.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
