package queue

import "log/slog"

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	cfg       Config
	sink      DeadLetterSink
	observers Observers
	logger    *slog.Logger
}

// WithConfig sets lanes and retry policy. NewConsumer rejects an invalid
// config with ErrInvalidConfig.
func WithConfig(cfg Config) ConsumerOption {
	return func(o *consumerOptions) {
		o.cfg = cfg
	}
}

// WithDeadLetterSink overrides where dropped and rejected envelopes go.
func WithDeadLetterSink(sink DeadLetterSink) ConsumerOption {
	return func(o *consumerOptions) {
		o.sink = sink
	}
}

// WithObserver adds observers notified after every processed delivery.
func WithObserver(obs ...Observer) ConsumerOption {
	return func(o *consumerOptions) {
		for _, ob := range obs {
			if ob != nil {
				o.observers = append(o.observers, ob)
			}
		}
	}
}

// WithConsumerLogger sets the logger for the consumer.
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(o *consumerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
