package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/broker"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

const settleTimeout = 10 * time.Second

// Consumer pulls envelopes from the primary lane, dispatches them and decides
// between ack, retry and drop.
//
// Envelopes are processed one at a time. Each dispatch runs under its own
// timeout context that is not tied to the consumer lifecycle, so Stop lets
// the in-flight envelope finish and settle before returning.
type Consumer struct {
	broker     broker.Broker
	dispatcher *Dispatcher
	cfg        Config
	sink       DeadLetterSink
	observer   Observer
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewConsumer creates a consumer. Unless a sink is given, dead letters go to
// the configured dead lane; with dead letters disabled they are only logged.
func NewConsumer(b broker.Broker, d *Dispatcher, opts ...ConsumerOption) (*Consumer, error) {
	if b == nil {
		return nil, ErrBrokerNil
	}
	if d == nil {
		return nil, ErrDispatcherNil
	}

	o := &consumerOptions{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	sink := o.sink
	if sink == nil && o.cfg.DeadLetters {
		sink = NewLaneDeadLetterSink(b, o.cfg.DeadLane)
	}

	return &Consumer{
		broker:     b,
		dispatcher: d,
		cfg:        o.cfg,
		sink:       sink,
		observer:   o.observers,
		logger:     o.logger.With(logger.Component("consumer")),
	}, nil
}

// Start subscribes to the primary lane and processes envelopes in the
// background until ctx is cancelled, Stop is called, or the broker drops the
// subscription.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrConsumerRunning
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	deliveries, err := c.broker.Consume(consumeCtx, c.cfg.PrimaryLane)
	if err != nil {
		cancel()
		return fmt.Errorf("consume %q: %w", c.cfg.PrimaryLane, err)
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	c.err = nil

	go c.loop(consumeCtx, cancel, deliveries, c.done)

	c.logger.Info("consumer started",
		logger.Lane(c.cfg.PrimaryLane),
		logger.MaxAttempts(c.cfg.MaxAttempts),
		logger.Duration(c.cfg.RetryDelay))
	return nil
}

// Stop stops taking new deliveries and waits for the in-flight envelope to be
// settled. The broker is left open for its owner to close.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return ErrConsumerNotRunning
	}
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	c.logger.Info("consumer stopping, waiting for in-flight delivery")
	cancel()
	<-done
	c.logger.Info("consumer stopped")
	return nil
}

// Done is closed when the processing loop exits.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns why the processing loop exited on its own, or nil.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Run starts the consumer and returns a function suitable for errgroup. The
// function returns nil after ctx is cancelled, or ErrBrokerUnavailable when
// the subscription is lost or the retry lane refuses a publish.
func (c *Consumer) Run(ctx context.Context) func() error {
	return func() error {
		if err := c.Start(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			err := c.Stop()
			if errors.Is(err, ErrConsumerNotRunning) {
				return nil
			}
			return err
		case <-c.Done():
			c.mu.Lock()
			if c.cancel != nil {
				c.cancel()
				c.cancel = nil
			}
			c.mu.Unlock()
			return c.Err()
		}
	}
}

func (c *Consumer) loop(ctx context.Context, cancel context.CancelFunc, deliveries <-chan broker.Delivery, done chan struct{}) {
	defer close(done)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() == nil {
					c.logger.Error("delivery channel closed, broker connection lost",
						logger.Lane(c.cfg.PrimaryLane))
					c.fail(broker.ErrBrokerUnavailable)
				}
				return
			}
			if err := c.process(d); err != nil {
				c.logger.Error("consumer stopped, broker needs reconnecting",
					logger.Lane(c.cfg.PrimaryLane),
					logger.Error(err))
				c.fail(err)
				return
			}
		}
	}
}

func (c *Consumer) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// process settles exactly one delivery. A non-nil error means the consumer
// cannot go on without a reconnect.
func (c *Consumer) process(d broker.Delivery) error {
	start := time.Now()

	env, err := DecodeEnvelope(d.Body)
	if err != nil {
		c.logger.Error("rejecting undecodable message",
			logger.Lane(d.Lane),
			logger.Error(err))
		c.finish(d, Event{Outcome: OutcomeRejected, Attempt: 1, Err: err, Duration: time.Since(start)}, d.Body)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandlerTimeout)
	err = c.dispatcher.Dispatch(ctx, env)
	cancel()

	ev := Event{
		Envelope: env,
		Attempt:  env.Attempts + 1,
		Err:      err,
		Duration: time.Since(start),
	}
	attrs := []any{
		logger.NotificationType(string(env.Type)),
		logger.NotificationID(env.NotificationID()),
		logger.Attempt(ev.Attempt),
		logger.MaxAttempts(c.cfg.MaxAttempts),
	}

	switch {
	case err == nil:
		ev.Outcome = OutcomeDelivered
		if aerr := d.Ack(); aerr != nil {
			c.logger.Error("failed to ack delivered message", append(attrs, logger.Error(aerr))...)
		}
		c.logger.Info("notification delivered", append(attrs, logger.Duration(ev.Duration))...)
		c.notify(ev)

	case errors.Is(err, ErrUnregisteredType) || IsPermanent(err):
		ev.Outcome = OutcomeRejected
		c.logger.Error("notification rejected without retry", append(attrs, logger.Error(err))...)
		c.finish(d, ev, nil)

	case env.Attempts < c.cfg.MaxAttempts:
		c.logger.Error("notification delivery failed, scheduling retry",
			append(attrs, logger.Duration(c.cfg.RetryDelay), logger.Error(err))...)
		return c.retry(d, ev)

	default:
		ev.Outcome = OutcomeDropped
		c.logger.Warn("notification dropped after max attempts", append(attrs, logger.Error(err))...)
		c.finish(d, ev, nil)
	}
	return nil
}

// retry republishes the envelope to the retry lane with attempts+1 and only
// then acks the original. If the republish fails the original is requeued
// with its attempt count unchanged and an ErrBrokerUnavailable error is
// returned, so the handler is not run again until the broker is reconnected.
func (c *Consumer) retry(d broker.Delivery, ev Event) error {
	next := ev.Envelope
	next.Attempts++

	body, err := Encode(next)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		err = c.broker.Publish(ctx, c.cfg.RetryLane, body)
		cancel()
	}
	if err != nil {
		c.logger.Error("failed to publish to retry lane, requeueing",
			logger.Lane(c.cfg.RetryLane),
			logger.NotificationID(next.NotificationID()),
			logger.Error(err))
		if nerr := d.Nack(true); nerr != nil {
			c.logger.Error("failed to requeue message", logger.Error(nerr))
		}
		err = fmt.Errorf("publish to retry lane %q: %w", c.cfg.RetryLane, err)
		if !errors.Is(err, broker.ErrBrokerUnavailable) {
			err = errors.Join(broker.ErrBrokerUnavailable, err)
		}
		return err
	}

	if aerr := d.Ack(); aerr != nil {
		c.logger.Error("failed to ack retried message",
			logger.NotificationID(next.NotificationID()),
			logger.Error(aerr))
	}

	ev.Outcome = OutcomeRetried
	c.notify(ev)
	return nil
}

// finish dead-letters a dropped or rejected envelope and acks it.
func (c *Consumer) finish(d broker.Delivery, ev Event, raw []byte) {
	if c.sink != nil {
		reason := ""
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		serr := c.sink.Store(ctx, DeadLetter{
			Envelope: ev.Envelope,
			Outcome:  ev.Outcome,
			Reason:   reason,
			FailedAt: time.Now().UTC(),
			Raw:      raw,
		})
		cancel()
		if serr != nil {
			c.logger.Error("failed to store dead letter",
				logger.NotificationID(ev.Envelope.NotificationID()),
				logger.Error(serr))
		}
	}

	if aerr := d.Ack(); aerr != nil {
		c.logger.Error("failed to ack message",
			logger.Outcome(string(ev.Outcome)),
			logger.Error(aerr))
	}
	c.notify(ev)
}

func (c *Consumer) notify(ev Event) {
	if c.observer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	c.observer.OnOutcome(ctx, ev)
}
