package broker

import (
	"context"
	"fmt"
	"time"
)

// Lane is a named, ordered channel of messages on the broker.
//
// A lane with a MessageTTL and a DeadLetterTo target is a delay lane: nothing
// consumes it directly, each message sits there for MessageTTL and is then
// re-routed to the tail of DeadLetterTo.
type Lane struct {
	Name         string
	Durable      bool
	MessageTTL   time.Duration
	DeadLetterTo string
}

// IsDelay reports whether the lane re-routes expired messages.
func (l Lane) IsDelay() bool {
	return l.MessageTTL > 0 && l.DeadLetterTo != ""
}

// Validate checks the lane definition.
func (l Lane) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLane)
	}
	if l.MessageTTL < 0 {
		return fmt.Errorf("%w: negative message ttl for %q", ErrInvalidLane, l.Name)
	}
	if l.DeadLetterTo == l.Name {
		return fmt.Errorf("%w: lane %q dead-letters to itself", ErrInvalidLane, l.Name)
	}
	return nil
}

// Acknowledger settles a single delivery on the broker that produced it.
type Acknowledger interface {
	Ack() error
	Nack(requeue bool) error
}

// Delivery is one message handed to a consumer. It must be settled exactly
// once with Ack or Nack; until then the broker keeps it redeliverable.
type Delivery struct {
	Body []byte
	Lane string
	// Redelivered reports that this consumer has seen the message before,
	// after a requeue or a crash.
	Redelivered bool

	acker Acknowledger
}

// NewDelivery builds a delivery settled through acker.
func NewDelivery(lane string, body []byte, redelivered bool, acker Acknowledger) Delivery {
	return Delivery{Body: body, Lane: lane, Redelivered: redelivered, acker: acker}
}

// Ack removes the message from the broker.
func (d Delivery) Ack() error {
	if d.acker == nil {
		return ErrAlreadySettled
	}
	return d.acker.Ack()
}

// Nack rejects the message. With requeue the message returns to the head of
// its lane, otherwise it is discarded.
func (d Delivery) Nack(requeue bool) error {
	if d.acker == nil {
		return ErrAlreadySettled
	}
	return d.acker.Nack(requeue)
}

// Broker is the transport the pipeline runs on.
type Broker interface {
	// Declare creates the lane if it does not exist. Calling it again with the
	// same definition is a no-op.
	Declare(ctx context.Context, lane Lane) error

	// Publish appends body to the tail of the lane. It never waits for a consumer.
	Publish(ctx context.Context, lane string, body []byte) error

	// Consume subscribes to the lane with at most one unsettled delivery at a
	// time. The channel is closed when ctx is cancelled, the broker is closed,
	// or the connection is lost.
	Consume(ctx context.Context, lane string) (<-chan Delivery, error)

	// Ping reports whether the broker connection is usable.
	Ping(ctx context.Context) error

	Close() error
}
