package queue

import (
	"context"
	"time"
)

// Outcome is what the consumer did with an envelope after dispatching it.
type Outcome string

const (
	// OutcomeDelivered means the handler succeeded and the message was acked.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeRetried means the envelope went to the retry lane with attempts+1.
	OutcomeRetried Outcome = "retried"
	// OutcomeDropped means the attempt budget ran out.
	OutcomeDropped Outcome = "dropped"
	// OutcomeRejected means the envelope could never succeed: malformed body,
	// unregistered type, or a permanent handler error.
	OutcomeRejected Outcome = "rejected"
)

// Event describes one processed delivery.
type Event struct {
	Envelope Envelope
	Outcome  Outcome
	// Attempt is the 1-based dispatch count for this envelope.
	Attempt  int
	Err      error
	Duration time.Duration
}

// Observer is notified after every processed delivery. Implementations must
// not block for long; they run on the consumer goroutine.
type Observer interface {
	OnOutcome(ctx context.Context, ev Event)
}

type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnOutcome(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out to every observer in order.
type Observers []Observer

func (o Observers) OnOutcome(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnOutcome(ctx, ev)
		}
	}
}

// PublishObserver is notified after every Publish call.
type PublishObserver interface {
	OnPublish(ctx context.Context, t NotificationType, err error)
}
