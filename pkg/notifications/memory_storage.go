package notifications

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStorage keeps records in process memory. Suitable for development
// and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]Record
	byUser  map[string][]string // userID -> record ids in insertion order
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]Record),
		byUser:  make(map[string][]string),
		now:     time.Now,
	}
}

func (s *MemoryStorage) Create(_ context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return errInvalid("duplicate id " + rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	s.records[rec.ID] = clone(rec)
	s.byUser[rec.UserID] = append(s.byUser[rec.UserID], rec.ID)
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(rec)
	return &out, nil
}

func (s *MemoryStorage) ListByUser(_ context.Context, userID string, opts ListOptions) ([]Record, error) {
	s.mu.RLock()
	ids := s.byUser[userID]
	filtered := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec := s.records[id]
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		filtered = append(filtered, clone(rec))
	}
	s.mu.RUnlock()

	// Stable so records created in the same instant keep newest-inserted first.
	slices.Reverse(filtered)
	slices.SortStableFunc(filtered, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	start := min(max(opts.Offset, 0), len(filtered))
	end := len(filtered)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, end)
	}
	return filtered[start:end], nil
}

func (s *MemoryStorage) MarkSent(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(rec *Record) {
		if rec.SentAt == nil {
			t := at.UTC()
			rec.SentAt = &t
		}
		rec.Status = StatusSent
		rec.Error = ""
	})
}

func (s *MemoryStorage) MarkFailed(_ context.Context, id string, reason string) error {
	return s.update(id, func(rec *Record) {
		if rec.Status == StatusSent {
			return
		}
		rec.Status = StatusFailed
		rec.Error = reason
	})
}

func (s *MemoryStorage) SetAttempts(_ context.Context, id string, n int) error {
	return s.update(id, func(rec *Record) {
		rec.Attempts = max(rec.Attempts, n)
	})
}

// Len returns the number of stored records.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStorage) update(id string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	fn(&rec)
	rec.UpdatedAt = s.now().UTC()
	s.records[id] = rec
	return nil
}

// clone copies the payload map so callers cannot mutate stored state.
func clone(rec Record) Record {
	if rec.Payload != nil {
		rec.Payload = maps.Clone(rec.Payload)
	}
	if rec.SentAt != nil {
		t := *rec.SentAt
		rec.SentAt = &t
	}
	return rec
}
