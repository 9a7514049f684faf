package broker

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Memory is an in-process broker for tests and local development.
//
// Primary lanes are FIFO slices. Delay lanes hold messages in a min-heap keyed
// by the time they become due; a scheduler goroutine moves due messages to the
// tail of their dead-letter target.
type Memory struct {
	mu      sync.Mutex
	lanes   map[string]*memoryLane
	delayed delayQueue
	wake    chan struct{}
	done    chan struct{}
	seq     uint64
	closed  bool
	wg      sync.WaitGroup
	logger  *slog.Logger
	now     func() time.Time
}

type memoryLane struct {
	def      Lane
	messages []memoryMessage
	// ready is closed and replaced whenever a message is added to the lane.
	ready chan struct{}
}

type memoryMessage struct {
	body        []byte
	redelivered bool
}

// NewMemory creates an in-memory broker and starts its delay scheduler.
func NewMemory(opts ...Option) *Memory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory{
		lanes:  make(map[string]*memoryLane),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: o.logger,
		now:    time.Now,
	}

	m.wg.Add(1)
	go m.schedule()

	return m
}

// Declare implements Broker.
func (m *Memory) Declare(_ context.Context, lane Lane) error {
	if err := lane.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if existing, ok := m.lanes[lane.Name]; ok {
		if existing.def != lane {
			return fmt.Errorf("%w: %q already declared with different arguments", ErrInvalidLane, lane.Name)
		}
		return nil
	}
	m.lanes[lane.Name] = &memoryLane{def: lane, ready: make(chan struct{})}
	return nil
}

// Publish implements Broker.
func (m *Memory) Publish(ctx context.Context, lane string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	l, ok := m.lanes[lane]
	if !ok {
		return fmt.Errorf("%w: %q", ErrLaneNotDeclared, lane)
	}

	msg := memoryMessage{body: append([]byte(nil), body...)}

	if l.def.IsDelay() {
		m.seq++
		heap.Push(&m.delayed, &delayedMessage{
			dueAt:  m.now().Add(l.def.MessageTTL),
			target: l.def.DeadLetterTo,
			msg:    msg,
			seq:    m.seq,
		})
		select {
		case m.wake <- struct{}{}:
		default:
		}
		return nil
	}

	l.push(msg)
	return nil
}

// Consume implements Broker.
func (m *Memory) Consume(ctx context.Context, lane string) (<-chan Delivery, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	l, ok := m.lanes[lane]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrLaneNotDeclared, lane)
	}
	if l.def.IsDelay() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q is a delay lane", ErrInvalidLane, lane)
	}
	m.wg.Add(1)
	m.mu.Unlock()

	out := make(chan Delivery)
	go m.deliver(ctx, l, out)
	return out, nil
}

func (m *Memory) deliver(ctx context.Context, l *memoryLane, out chan<- Delivery) {
	defer m.wg.Done()
	defer close(out)

	for {
		msg, ok := m.next(ctx, l)
		if !ok {
			return
		}

		acker := &memoryAcker{broker: m, lane: l, msg: msg, settled: make(chan struct{})}
		select {
		case out <- NewDelivery(l.def.Name, msg.body, msg.redelivered, acker):
		case <-ctx.Done():
			_ = m.requeue(l, msg, msg.redelivered)
			return
		case <-m.done:
			return
		}

		// One unsettled delivery at a time. A cancelled consumer stops here but
		// its in-flight delivery can still be settled.
		select {
		case <-acker.settled:
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
	}
}

// next blocks until a message is available on the lane.
func (m *Memory) next(ctx context.Context, l *memoryLane) (memoryMessage, bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return memoryMessage{}, false
		}
		if len(l.messages) > 0 {
			msg := l.messages[0]
			l.messages[0] = memoryMessage{}
			l.messages = l.messages[1:]
			m.mu.Unlock()
			return msg, true
		}
		ready := l.ready
		m.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return memoryMessage{}, false
		case <-m.done:
			return memoryMessage{}, false
		}
	}
}

func (m *Memory) requeue(l *memoryLane, msg memoryMessage, redelivered bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	msg.redelivered = redelivered
	l.messages = append([]memoryMessage{msg}, l.messages...)
	l.signal()
	return nil
}

// schedule moves due delayed messages to their target lanes.
func (m *Memory) schedule() {
	defer m.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		m.mu.Lock()
		wait := m.promoteDue()
		m.mu.Unlock()

		if wait > 0 {
			timer.Reset(wait)
		}

		select {
		case <-m.done:
			return
		case <-m.wake:
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// promoteDue must be called with mu held. It returns how long to wait for the
// next message to become due, or zero when the delay queue is empty.
func (m *Memory) promoteDue() time.Duration {
	now := m.now()
	for m.delayed.Len() > 0 {
		head := m.delayed[0]
		if head.dueAt.After(now) {
			return head.dueAt.Sub(now)
		}
		heap.Pop(&m.delayed)

		target, ok := m.lanes[head.target]
		if !ok {
			m.logger.Warn("dropping expired message with undeclared dead-letter target",
				slog.String("lane", head.target))
			continue
		}
		target.push(head.msg)
	}
	return 0
}

// Ping implements Broker.
func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close stops the scheduler and every consumer. Pending messages are discarded.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// Len returns the number of ready messages on a lane. Delayed messages are
// not counted; see Delayed.
func (m *Memory) Len(lane string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lanes[lane]; ok {
		return len(l.messages)
	}
	return 0
}

// Delayed returns the number of messages waiting on delay lanes.
func (m *Memory) Delayed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delayed.Len()
}

func (l *memoryLane) push(msg memoryMessage) {
	l.messages = append(l.messages, msg)
	l.signal()
}

func (l *memoryLane) signal() {
	close(l.ready)
	l.ready = make(chan struct{})
}

type memoryAcker struct {
	once    sync.Once
	broker  *Memory
	lane    *memoryLane
	msg     memoryMessage
	settled chan struct{}
}

func (a *memoryAcker) Ack() error {
	err := ErrAlreadySettled
	a.once.Do(func() {
		err = nil
		close(a.settled)
	})
	return err
}

func (a *memoryAcker) Nack(requeue bool) error {
	err := ErrAlreadySettled
	a.once.Do(func() {
		err = nil
		if requeue {
			err = a.broker.requeue(a.lane, a.msg, true)
		}
		close(a.settled)
	})
	return err
}

type delayedMessage struct {
	dueAt  time.Time
	target string
	msg    memoryMessage
	seq    uint64
}

// delayQueue is a min-heap ordered by due time, then by publish order.
type delayQueue []*delayedMessage

func (q delayQueue) Len() int { return len(q) }

func (q delayQueue) Less(i, j int) bool {
	if q[i].dueAt.Equal(q[j].dueAt) {
		return q[i].seq < q[j].seq
	}
	return q[i].dueAt.Before(q[j].dueAt)
}

func (q delayQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *delayQueue) Push(x any) {
	*q = append(*q, x.(*delayedMessage))
}

func (q *delayQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
