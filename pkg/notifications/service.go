package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Publisher hands channel payloads to the delivery pipeline.
type Publisher interface {
	Publish(ctx context.Context, t queue.NotificationType, data map[string]any) error
}

// Service accepts notification requests: it persists a pending record and
// enqueues the channel payload. Delivery happens asynchronously.
type Service struct {
	storage   Storage
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for intake events. Nil is ignored.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the intake service that persists records in storage and
// hands them to publisher.
func NewService(storage Storage, publisher Publisher, opts ...ServiceOption) *Service {
	s := &Service{
		storage:   storage,
		publisher: publisher,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send normalizes and validates req, stores it as pending and publishes it. If publishing
// fails the record is marked failed and the publish error is returned.
func (s *Service) Send(ctx context.Context, req Request) (*Record, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidRequest, err)
	}

	now := s.now().UTC()
	rec := Record{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Type:      queue.NotificationType(req.Type),
		To:        req.To,
		Title:     req.Title,
		Message:   req.Message,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.Create(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, rec.Type, envelopeData(rec)); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue notification",
			logger.NotificationID(rec.ID),
			logger.NotificationType(rec.Type.String()),
			logger.Error(err))
		if merr := s.storage.MarkFailed(ctx, rec.ID, err.Error()); merr != nil {
			s.logger.ErrorContext(ctx, "failed to mark notification failed",
				logger.NotificationID(rec.ID),
				logger.Error(merr))
		}
		return nil, errors.Join(ErrPublish, err)
	}

	s.logger.InfoContext(ctx, "notification accepted",
		logger.NotificationID(rec.ID),
		logger.NotificationType(rec.Type.String()),
		logger.UserID(rec.UserID),
		slog.String("to", maskRecipient(rec.Type, rec.To)))
	return &rec, nil
}

// List returns a user's records, newest first.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]Record, error) {
	return s.storage.ListByUser(ctx, userID, opts)
}

func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.storage.Get(ctx, id)
}
