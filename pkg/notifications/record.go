package notifications

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Status is the delivery state of a persisted notification.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Record is one accepted notification request and its delivery state.
// Sent is terminal: SentAt is written once and a sent record is never
// moved back to failed.
type Record struct {
	ID        string                 `json:"id" bson:"_id"`
	UserID    string                 `json:"userId" bson:"user_id"`
	Type      queue.NotificationType `json:"type" bson:"type"`
	To        string                 `json:"to,omitempty" bson:"to,omitempty"`
	Title     string                 `json:"title" bson:"title"`
	Message   string                 `json:"message" bson:"message"`
	Payload   map[string]any         `json:"payload,omitempty" bson:"payload,omitempty"`
	Status    Status                 `json:"status" bson:"status"`
	Attempts  int                    `json:"attempts" bson:"attempts"`
	Error     string                 `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt time.Time              `json:"createdAt" bson:"created_at"`
	SentAt    *time.Time             `json:"sentAt,omitempty" bson:"sent_at,omitempty"`
	UpdatedAt time.Time              `json:"updatedAt" bson:"updated_at"`
}

func (r Record) validate() error {
	switch {
	case r.ID == "":
		return errInvalid("id is required")
	case r.UserID == "":
		return errInvalid("user id is required")
	case !r.Type.Valid():
		return errInvalid("unsupported type " + string(r.Type))
	case !r.Status.Valid():
		return errInvalid("unsupported status " + string(r.Status))
	}
	return nil
}

// ListOptions narrows ListByUser. Results are always newest first.
type ListOptions struct {
	Limit  int    // 0 means no limit
	Offset int
	Status Status // empty means any status
}
