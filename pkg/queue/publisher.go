package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/broker"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// PublisherOption configures a Publisher.
type PublisherOption func(*publisherOptions)

type publisherOptions struct {
	lane     string
	logger   *slog.Logger
	observer PublishObserver
}

// WithPublishLane sets the lane new envelopes are published to.
func WithPublishLane(lane string) PublisherOption {
	return func(o *publisherOptions) {
		if lane != "" {
			o.lane = lane
		}
	}
}

// WithPublisherLogger sets the logger for the publisher.
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(o *publisherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPublishObserver registers an observer notified after every publish.
func WithPublishObserver(obs PublishObserver) PublisherOption {
	return func(o *publisherOptions) {
		o.observer = obs
	}
}

// Publisher wraps notification data into envelopes and puts them on the
// primary lane.
type Publisher struct {
	broker   broker.Broker
	lane     string
	logger   *slog.Logger
	observer PublishObserver
}

// NewPublisher creates a publisher on b.
func NewPublisher(b broker.Broker, opts ...PublisherOption) (*Publisher, error) {
	if b == nil {
		return nil, ErrBrokerNil
	}

	o := &publisherOptions{
		lane:   DefaultConfig().PrimaryLane,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Publisher{
		broker:   b,
		lane:     o.lane,
		logger:   o.logger,
		observer: o.observer,
	}, nil
}

// Publish enqueues a fresh envelope with zero attempts. Broker errors are
// returned as-is; there is no retry at this layer.
func (p *Publisher) Publish(ctx context.Context, t NotificationType, data map[string]any) (err error) {
	if p.observer != nil {
		defer func() { p.observer.OnPublish(ctx, t, err) }()
	}

	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t)
	}

	body, err := Encode(Envelope{Type: t, Data: data})
	if err != nil {
		return err
	}

	if err := p.broker.Publish(ctx, p.lane, body); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish notification",
			logger.NotificationType(string(t)),
			logger.Lane(p.lane),
			logger.Error(err))
		return err
	}

	p.logger.DebugContext(ctx, "notification published",
		logger.NotificationType(string(t)),
		logger.NotificationID(Envelope{Data: data}.NotificationID()),
		logger.Lane(p.lane))
	return nil
}
