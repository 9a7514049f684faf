package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// promoteScript moves due members of a delay set onto the tail of the target
// list. Members are "<uuid>|<body>" so identical bodies stay distinct.
var promoteScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(items) do
	redis.call('ZREM', KEYS[1], member)
	local sep = string.find(member, '|', 1, true)
	redis.call('LPUSH', KEYS[2], string.sub(member, sep + 1))
end
return #items
`)

// nackScript returns a message from the processing list to the head of its lane.
var nackScript = redis.NewScript(`
local removed = redis.call('LREM', KEYS[1], 1, ARGV[1])
if removed > 0 then
	redis.call('RPUSH', KEYS[2], ARGV[1])
end
return removed
`)

const promoteBatch = 100

// blockTimeout bounds a blocking pop so cancellation is noticed. Redis takes
// whole seconds here.
const blockTimeout = time.Second

// Redis is a broker on top of Redis lists and sorted sets.
//
// A primary lane is a list: publishers LPUSH, consumers BLMOVE from the right
// into a processing list owned by this process and LREM it on ack. A delay
// lane is a sorted set scored by the due time in milliseconds; a promoter
// moves due members to the dead-letter target list.
//
// Deliveries left in this process's processing list by a crash are moved back
// to their lane when a consumer for that lane starts again with the same
// consumer ID. Those messages and the ones requeued by Nack are marked
// Redelivered when this consumer pops them again; a copy picked up by another
// process is not.
type Redis struct {
	client       redis.UniversalClient
	prefix       string
	consumerID   string
	pollInterval time.Duration
	logger       *slog.Logger

	mu     sync.RWMutex
	lanes  map[string]Lane
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewRedis wraps a connected client. The client is owned by the caller and is
// not closed by Close.
func NewRedis(client redis.UniversalClient, cfg Config, opts ...Option) *Redis {
	o := defaultOptions()
	if cfg.PollInterval > 0 {
		o.pollInterval = cfg.PollInterval
	}
	if cfg.ConsumerID != "" {
		o.consumerID = cfg.ConsumerID
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.consumerID == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			o.consumerID = host
		} else {
			o.consumerID = uuid.NewString()
		}
	}

	return &Redis{
		client:       client,
		prefix:       cfg.RedisPrefix,
		consumerID:   o.consumerID,
		pollInterval: o.pollInterval,
		logger:       o.logger,
		lanes:        make(map[string]Lane),
		done:         make(chan struct{}),
	}
}

func (b *Redis) listKey(lane string) string {
	return b.prefix + "lane:" + lane
}

func (b *Redis) delayKey(lane string) string {
	return b.prefix + "delay:" + lane
}

func (b *Redis) processingKey(lane string) string {
	return b.prefix + "processing:" + lane + ":" + b.consumerID
}

// Declare implements Broker. Declaring a delay lane starts its promoter.
func (b *Redis) Declare(_ context.Context, lane Lane) error {
	if err := lane.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if existing, ok := b.lanes[lane.Name]; ok {
		if existing != lane {
			return fmt.Errorf("%w: %q already declared with different arguments", ErrInvalidLane, lane.Name)
		}
		return nil
	}
	b.lanes[lane.Name] = lane

	if lane.IsDelay() {
		b.wg.Add(1)
		go b.promote(lane)
	}
	return nil
}

// Publish implements Broker.
func (b *Redis) Publish(ctx context.Context, lane string, body []byte) error {
	b.mu.RLock()
	closed := b.closed
	def, ok := b.lanes[lane]
	b.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrLaneNotDeclared, lane)
	}

	var err error
	if def.IsDelay() {
		due := time.Now().Add(def.MessageTTL).UnixMilli()
		member := uuid.NewString() + "|" + string(body)
		err = b.client.ZAdd(ctx, b.delayKey(lane), redis.Z{Score: float64(due), Member: member}).Err()
	} else {
		err = b.client.LPush(ctx, b.listKey(lane), body).Err()
	}
	if err != nil {
		return b.unavailable(fmt.Errorf("publish to %q: %w", lane, err))
	}
	return nil
}

func (b *Redis) promote(lane Lane) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-b.done
		cancel()
	}()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			now := strconv.FormatInt(time.Now().UnixMilli(), 10)
			keys := []string{b.delayKey(lane.Name), b.listKey(lane.DeadLetterTo)}
			if err := promoteScript.Run(ctx, b.client, keys, now, promoteBatch).Err(); err != nil && !errors.Is(err, context.Canceled) {
				b.logger.Error("failed to promote delayed messages",
					slog.String("lane", lane.Name),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Consume implements Broker.
func (b *Redis) Consume(ctx context.Context, lane string) (<-chan Delivery, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	def, ok := b.lanes[lane]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrLaneNotDeclared, lane)
	}
	if def.IsDelay() {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %q is a delay lane", ErrInvalidLane, lane)
	}
	b.wg.Add(1)
	b.mu.Unlock()

	seen := &redeliveries{bodies: make(map[string]int)}
	if err := b.recover(ctx, lane, seen); err != nil {
		b.wg.Done()
		return nil, err
	}

	out := make(chan Delivery)
	go b.deliver(ctx, lane, seen, out)
	return out, nil
}

// recover moves messages left in this consumer's processing list back to the
// head of the lane.
func (b *Redis) recover(ctx context.Context, lane string, seen *redeliveries) error {
	for {
		body, err := b.client.LMove(ctx, b.processingKey(lane), b.listKey(lane), "LEFT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return b.unavailable(fmt.Errorf("recover processing list for %q: %w", lane, err))
		}
		seen.add(body)
	}
}

// redeliveries counts bodies a consumer put back on its lane.
type redeliveries struct {
	mu     sync.Mutex
	bodies map[string]int
}

func (r *redeliveries) add(body string) {
	r.mu.Lock()
	r.bodies[body]++
	r.mu.Unlock()
}

func (r *redeliveries) take(body string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.bodies[body]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(r.bodies, body)
	} else {
		r.bodies[body] = n - 1
	}
	return true
}

func (b *Redis) deliver(ctx context.Context, lane string, seen *redeliveries, out chan<- Delivery) {
	defer b.wg.Done()
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
		}

		body, err := b.client.BLMove(ctx, b.listKey(lane), b.processingKey(lane), "RIGHT", "LEFT", blockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("redis consumer stopped",
				slog.String("lane", lane),
				slog.String("error", err.Error()))
			return
		}

		acker := &redisAcker{broker: b, lane: lane, body: body, seen: seen, settled: make(chan struct{})}
		select {
		case out <- NewDelivery(lane, []byte(body), seen.take(body), acker):
		case <-ctx.Done():
			_ = acker.Nack(true)
			return
		case <-b.done:
			return
		}

		select {
		case <-acker.settled:
		case <-ctx.Done():
			return
		case <-b.done:
			return
		}
	}
}

type redisAcker struct {
	once    sync.Once
	broker  *Redis
	lane    string
	body    string
	seen    *redeliveries
	settled chan struct{}
}

func (a *redisAcker) Ack() error {
	err := ErrAlreadySettled
	a.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = a.broker.client.LRem(ctx, a.broker.processingKey(a.lane), 1, a.body).Err()
		if err != nil {
			err = a.broker.unavailable(fmt.Errorf("ack: %w", err))
		}
		close(a.settled)
	})
	return err
}

func (a *redisAcker) Nack(requeue bool) error {
	err := ErrAlreadySettled
	a.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if requeue {
			keys := []string{a.broker.processingKey(a.lane), a.broker.listKey(a.lane)}
			var removed int64
			removed, err = nackScript.Run(ctx, a.broker.client, keys, a.body).Int64()
			if err == nil && removed > 0 {
				a.seen.add(a.body)
			}
		} else {
			err = a.broker.client.LRem(ctx, a.broker.processingKey(a.lane), 1, a.body).Err()
		}
		if err != nil {
			err = a.broker.unavailable(fmt.Errorf("nack: %w", err))
		}
		close(a.settled)
	})
	return err
}

// Ping implements Broker.
func (b *Redis) Ping(ctx context.Context) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if err := b.client.Ping(ctx).Err(); err != nil {
		return errors.Join(ErrBrokerUnavailable, err)
	}
	return nil
}

// Close stops promoters and consumers. Unsettled deliveries stay in the
// processing list and are recovered by the next consumer.
func (b *Redis) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *Redis) unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrBrokerUnavailable, err)
}
