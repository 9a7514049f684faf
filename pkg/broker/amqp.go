package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

// AMQP is a RabbitMQ-backed broker.
//
// Lanes map to queues on the default exchange. Delay lanes are queues with a
// per-queue message TTL whose expired messages are dead-lettered back to the
// primary queue.
//
// There is no automatic reconnection. When the connection drops, in-flight
// and subsequent calls fail with ErrBrokerUnavailable and every consumer
// channel is closed; the owner decides when to call Connect again.
type AMQP struct {
	url         string
	dialTimeout time.Duration
	prefetch    int
	logger      *slog.Logger

	mu        sync.RWMutex
	conn      *amqp.Connection
	pub       *amqp.Channel
	pubMu     sync.Mutex
	lanes     map[string]Lane
	order     []string
	consumers map[string]*amqpConsumer
	closed    bool
}

// NewAMQP creates a RabbitMQ broker. Call Connect before use.
func NewAMQP(cfg Config, opts ...Option) *AMQP {
	o := defaultOptions()
	if cfg.Prefetch > 0 {
		o.prefetch = cfg.Prefetch
	}
	for _, opt := range opts {
		opt(o)
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &AMQP{
		url:         cfg.URL,
		dialTimeout: timeout,
		prefetch:    o.prefetch,
		logger:      o.logger,
		lanes:       make(map[string]Lane),
		consumers:   make(map[string]*amqpConsumer),
	}
}

// Connect dials RabbitMQ, opens the publishing channel and re-declares every
// lane declared so far. On a live connection it only reopens a publishing
// channel closed by a channel-level exception.
func (b *AMQP) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if b.pub != nil && !b.pub.IsClosed() {
			return nil
		}
		ch, err := b.conn.Channel()
		if err != nil {
			return classify(fmt.Errorf("reopen channel: %w", err))
		}
		b.pub = ch
		b.logger.Info("rabbitmq publishing channel reopened")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := amqp.DialConfig(b.url, amqp.Config{
		Dial:       amqp.DefaultDial(b.dialTimeout),
		Properties: amqp.Table{"connection_name": "notifykit"},
	})
	if err != nil {
		return errors.Join(ErrBrokerUnavailable, fmt.Errorf("dial rabbitmq: %w", err))
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return errors.Join(ErrBrokerUnavailable, fmt.Errorf("open channel: %w", err))
	}

	for _, name := range b.order {
		if err := declareQueue(ch, b.lanes[name]); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return err
		}
	}

	b.conn = conn
	b.pub = ch

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	go b.watch(conn, closeCh)

	b.logger.Info("connected to rabbitmq", slog.Int("lanes", len(b.order)))
	return nil
}

// DialAMQP creates an AMQP broker and connects it, retrying with exponential
// backoff for cfg.RetryAttempts while RabbitMQ is unreachable.
func DialAMQP(ctx context.Context, cfg Config, opts ...Option) (*AMQP, error) {
	b := NewAMQP(cfg, opts...)
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	backoff := retry.WithMaxRetries(uint64(max(cfg.RetryAttempts, 0)), retry.NewExponential(interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := b.Connect(ctx)
		if errors.Is(err, ErrBrokerUnavailable) {
			b.logger.Warn("rabbitmq not reachable, retrying", slog.Any("error", err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// watch clears the connection state when the server or network drops it.
func (b *AMQP) watch(conn *amqp.Connection, closeCh <-chan *amqp.Error) {
	amqpErr, ok := <-closeCh

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != conn {
		return
	}
	b.conn = nil
	b.pub = nil

	if ok && amqpErr != nil {
		b.logger.Error("rabbitmq connection lost",
			slog.Int("code", amqpErr.Code),
			slog.String("reason", amqpErr.Reason))
	}
}

// Declare implements Broker. The lane is remembered and re-declared on every
// subsequent Connect.
func (b *AMQP) Declare(_ context.Context, lane Lane) error {
	if err := lane.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.pub == nil {
		return ErrBrokerUnavailable
	}

	b.pubMu.Lock()
	err := declareQueue(b.pub, lane)
	b.pubMu.Unlock()
	if err != nil {
		return err
	}

	if _, ok := b.lanes[lane.Name]; !ok {
		b.order = append(b.order, lane.Name)
	}
	b.lanes[lane.Name] = lane
	return nil
}

func declareQueue(ch *amqp.Channel, lane Lane) error {
	var args amqp.Table
	if lane.IsDelay() {
		args = amqp.Table{
			"x-message-ttl":             lane.MessageTTL.Milliseconds(),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": lane.DeadLetterTo,
		}
	}

	_, err := ch.QueueDeclare(
		lane.Name,
		lane.Durable,
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		args,
	)
	if err != nil {
		return classify(fmt.Errorf("declare queue %q: %w", lane.Name, err))
	}
	return nil
}

// Publish implements Broker.
func (b *AMQP) Publish(ctx context.Context, lane string, body []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if b.pub == nil {
		return ErrBrokerUnavailable
	}
	if _, ok := b.lanes[lane]; !ok {
		return fmt.Errorf("%w: %q", ErrLaneNotDeclared, lane)
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	err := b.pub.PublishWithContext(
		ctx,
		"",    // default exchange
		lane,  // routing key is the queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return classify(fmt.Errorf("publish to %q: %w", lane, err))
	}
	return nil
}

// Consume implements Broker. Each consumer gets its own channel with
// Qos(prefetch) and manual acknowledgements.
func (b *AMQP) Consume(ctx context.Context, lane string) (<-chan Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.conn == nil {
		return nil, ErrBrokerUnavailable
	}
	def, ok := b.lanes[lane]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLaneNotDeclared, lane)
	}
	if def.IsDelay() {
		return nil, fmt.Errorf("%w: %q is a delay lane", ErrInvalidLane, lane)
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, classify(fmt.Errorf("open consumer channel: %w", err))
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, classify(fmt.Errorf("set qos: %w", err))
	}

	tag := "notifykit-" + uuid.NewString()
	msgs, err := ch.Consume(
		lane,
		tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, classify(fmt.Errorf("consume %q: %w", lane, err))
	}

	c := &amqpConsumer{
		tag:  tag,
		lane: lane,
		ch:   ch,
		done: make(chan struct{}),
	}
	b.consumers[tag] = c

	out := make(chan Delivery)
	go b.forward(ctx, c, msgs, out)

	b.logger.Debug("consumer started", slog.String("lane", lane), slog.String("tag", tag))
	return out, nil
}

type amqpConsumer struct {
	tag      string
	lane     string
	ch       *amqp.Channel
	done     chan struct{}
	stopOnce sync.Once
	inFlight *amqpAcker
}

func (c *amqpConsumer) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (b *AMQP) forward(ctx context.Context, c *amqpConsumer, msgs <-chan amqp.Delivery, out chan<- Delivery) {
	defer b.release(c)
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				b.logger.Warn("consumer channel closed by server", slog.String("lane", c.lane))
				return
			}

			acker := &amqpAcker{msg: msg, settled: make(chan struct{})}
			select {
			case out <- NewDelivery(c.lane, msg.Body, msg.Redelivered, acker):
				c.inFlight = acker
			case <-ctx.Done():
				_ = msg.Nack(false, true)
				return
			case <-c.done:
				_ = msg.Nack(false, true)
				return
			}
		}
	}
}

// release cancels the subscription and closes the consumer channel once the
// last handed-out delivery has been settled, so a dispatch that is still
// running during shutdown can ack.
func (b *AMQP) release(c *amqpConsumer) {
	_ = c.ch.Cancel(c.tag, false)

	if c.inFlight != nil {
		select {
		case <-c.inFlight.settled:
		case <-c.done:
		}
	}
	_ = c.ch.Close()

	b.mu.Lock()
	delete(b.consumers, c.tag)
	b.mu.Unlock()
}

type amqpAcker struct {
	once    sync.Once
	msg     amqp.Delivery
	settled chan struct{}
}

func (a *amqpAcker) Ack() error {
	err := ErrAlreadySettled
	a.once.Do(func() {
		err = a.msg.Ack(false)
		if err != nil {
			err = classify(fmt.Errorf("ack: %w", err))
		}
		close(a.settled)
	})
	return err
}

func (a *amqpAcker) Nack(requeue bool) error {
	err := ErrAlreadySettled
	a.once.Do(func() {
		err = a.msg.Nack(false, requeue)
		if err != nil {
			err = classify(fmt.Errorf("nack: %w", err))
		}
		close(a.settled)
	})
	return err
}

// Ping implements Broker.
func (b *AMQP) Ping(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	if b.conn == nil || b.conn.IsClosed() {
		return ErrBrokerUnavailable
	}
	return nil
}

// Close cancels every consumer first, then closes the publishing channel and
// the connection.
func (b *AMQP) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	consumers := make([]*amqpConsumer, 0, len(b.consumers))
	for _, c := range b.consumers {
		consumers = append(consumers, c)
	}
	conn, pub := b.conn, b.pub
	b.conn, b.pub = nil, nil
	b.mu.Unlock()

	for _, c := range consumers {
		c.stop()
	}

	var errs []error
	if pub != nil {
		if err := pub.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if conn != nil && !conn.IsClosed() {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	b.logger.Info("rabbitmq connection closed")
	return errors.Join(errs...)
}

// classify marks errors caused by a dead channel or connection as
// ErrBrokerUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var amqpErr *amqp.Error
	if errors.Is(err, amqp.ErrClosed) || (errors.As(err, &amqpErr) && !amqpErr.Recover) {
		return errors.Join(ErrBrokerUnavailable, err)
	}
	return err
}
