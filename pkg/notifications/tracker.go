package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Tracker mirrors pipeline outcomes onto stored records. Envelopes without
// a notification id are ignored.
type Tracker struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

var _ queue.Observer = (*Tracker)(nil)

func NewTracker(storage Storage, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{storage: storage, logger: log, now: time.Now}
}

// OnOutcome implements queue.Observer.
func (t *Tracker) OnOutcome(ctx context.Context, ev queue.Event) {
	id := ev.Envelope.NotificationID()
	if id == "" {
		return
	}

	var errs []error
	if err := t.storage.SetAttempts(ctx, id, ev.Attempt); err != nil {
		errs = append(errs, err)
	}

	switch ev.Outcome {
	case queue.OutcomeDelivered:
		errs = append(errs, t.storage.MarkSent(ctx, id, t.now()))
	case queue.OutcomeDropped, queue.OutcomeRejected:
		reason := string(ev.Outcome)
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		errs = append(errs, t.storage.MarkFailed(ctx, id, reason))
	}

	err := errors.Join(errs...)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		t.logger.WarnContext(ctx, "tracked notification has no record",
			logger.NotificationID(id),
			logger.Outcome(string(ev.Outcome)))
	default:
		t.logger.ErrorContext(ctx, "failed to update notification record",
			logger.NotificationID(id),
			logger.Outcome(string(ev.Outcome)),
			logger.Error(err))
	}
}
