package queue

import "errors"

var (
	// ErrBrokerNil is returned when a nil broker is provided
	ErrBrokerNil = errors.New("broker cannot be nil")

	// ErrInvalidConfig is returned by NewConsumer for a config that fails Validate
	ErrInvalidConfig = errors.New("invalid queue config")

	// ErrDispatcherNil is returned when a nil dispatcher is provided
	ErrDispatcherNil = errors.New("dispatcher cannot be nil")

	// ErrInvalidType is returned when publishing a notification type outside the supported set
	ErrInvalidType = errors.New("invalid notification type")

	// ErrNilHandler is returned when registering a nil handler
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrHandlerAlreadyRegistered is returned by a strict dispatcher on a second registration
	ErrHandlerAlreadyRegistered = errors.New("handler already registered for notification type")

	// ErrUnregisteredType is returned when no handler exists for an envelope's type
	ErrUnregisteredType = errors.New("no handler registered for notification type")

	// ErrDeliveryFailed wraps every error returned by a handler
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrHandlerPanic is returned when a handler panics
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrMalformedEnvelope is returned when a message body is not a valid envelope
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrEncodeEnvelope is returned when an envelope cannot be serialized
	ErrEncodeEnvelope = errors.New("failed to encode envelope")

	// ErrConsumerRunning is returned when starting a consumer twice
	ErrConsumerRunning = errors.New("consumer already running")

	// ErrConsumerNotRunning is returned when stopping a consumer that was never started
	ErrConsumerNotRunning = errors.New("consumer not running")
)
