package broker

import "errors"

var (
	// ErrBrokerUnavailable is returned when there is no live connection to the broker
	// or the connection was lost while an operation was in flight.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrLaneNotDeclared is returned when publishing to or consuming from an unknown lane.
	ErrLaneNotDeclared = errors.New("lane not declared")

	// ErrInvalidLane is returned when a lane definition is malformed.
	ErrInvalidLane = errors.New("invalid lane")

	// ErrClosed is returned by any operation on a closed broker.
	ErrClosed = errors.New("broker closed")

	// ErrAlreadySettled is returned when a delivery is acked or nacked twice.
	ErrAlreadySettled = errors.New("delivery already settled")

	// ErrUnknownDriver is reported by Config.Validate for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown broker driver")
)
