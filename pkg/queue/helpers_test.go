package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/broker"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func testConfig() queue.Config {
	cfg := queue.DefaultConfig()
	cfg.RetryDelay = 20 * time.Millisecond
	cfg.HandlerTimeout = time.Second
	return cfg
}

func newTestBroker(t *testing.T, cfg queue.Config) *broker.Memory {
	t.Helper()
	b := broker.NewMemory(broker.WithLogger(logger.Discard()))
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, queue.DeclareTopology(context.Background(), b, cfg))
	return b
}

// eventRecorder collects consumer outcomes.
type eventRecorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *eventRecorder) OnOutcome(_ context.Context, ev queue.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) Events() []queue.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.Event(nil), r.events...)
}

func (r *eventRecorder) Last() (queue.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return queue.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// countingHandler fails the first failures calls, then succeeds.
type countingHandler struct {
	calls    atomic.Int32
	failures int32
	err      error
}

func (h *countingHandler) Deliver(context.Context, map[string]any) error {
	n := h.calls.Add(1)
	if h.failures < 0 || n <= h.failures {
		return h.err
	}
	return nil
}

// flakyBroker fails publishes to one lane a fixed number of times.
type flakyBroker struct {
	*broker.Memory
	lane     string
	failures atomic.Int32
}

var errPublishRefused = errors.New("publish refused")

func (b *flakyBroker) Publish(ctx context.Context, lane string, body []byte) error {
	if lane == b.lane && b.failures.Add(-1) >= 0 {
		return errors.Join(broker.ErrBrokerUnavailable, errPublishRefused)
	}
	return b.Memory.Publish(ctx, lane, body)
}
