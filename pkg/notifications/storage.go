package notifications

import (
	"context"
	"fmt"
	"time"
)

// Storage persists notification records. Implementations return ErrNotFound
// for unknown identifiers.
type Storage interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (*Record, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Record, error)
	// MarkSent moves a record to sent. Repeated calls keep the first SentAt.
	MarkSent(ctx context.Context, id string, at time.Time) error
	// MarkFailed moves a record to failed unless it was already sent.
	MarkFailed(ctx context.Context, id string, reason string) error
	// SetAttempts raises the attempt counter to n; it never lowers it.
	SetAttempts(ctx context.Context, id string, n int) error
}

func errInvalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, msg)
}
