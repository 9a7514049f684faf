package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/broker"
)

// DeadLetter records an envelope the pipeline gave up on.
type DeadLetter struct {
	Envelope Envelope  `json:"envelope"`
	Outcome  Outcome   `json:"outcome"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
	// Raw holds the original body when it could not be decoded.
	Raw      []byte    `json:"raw,omitempty"`
}

// DeadLetterSink stores dead letters for inspection and manual replay.
type DeadLetterSink interface {
	Store(ctx context.Context, dl DeadLetter) error
}

// LaneDeadLetterSink publishes dead letters to a broker lane.
type LaneDeadLetterSink struct {
	broker broker.Broker
	lane   string
}

// NewLaneDeadLetterSink returns a sink that publishes to lane on b. The lane
// must already be declared.
func NewLaneDeadLetterSink(b broker.Broker, lane string) *LaneDeadLetterSink {
	return &LaneDeadLetterSink{broker: b, lane: lane}
}

// Store publishes dl as JSON.
func (s *LaneDeadLetterSink) Store(ctx context.Context, dl DeadLetter) error {
	body, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	return s.broker.Publish(ctx, s.lane, body)
}

// MemoryDeadLetterSink keeps dead letters in memory.
type MemoryDeadLetterSink struct {
	mu    sync.Mutex
	items []DeadLetter
}

// NewMemoryDeadLetterSink returns an empty in-memory sink.
func NewMemoryDeadLetterSink() *MemoryDeadLetterSink {
	return &MemoryDeadLetterSink{}
}

// Store appends dl. It never fails.
func (s *MemoryDeadLetterSink) Store(_ context.Context, dl DeadLetter) error {
	s.mu.Lock()
	s.items = append(s.items, dl)
	s.mu.Unlock()
	return nil
}

// Items returns a copy of the stored dead letters.
func (s *MemoryDeadLetterSink) Items() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}
