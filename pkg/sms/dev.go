package sms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Dev logs messages instead of sending them and keeps them for inspection.
type Dev struct {
	logger *slog.Logger

	mu     sync.Mutex
	sent   []Message
	status map[string]string
}

func NewDev(log *slog.Logger) *Dev {
	if log == nil {
		log = slog.Default()
	}
	return &Dev{
		logger: log.With(logger.Component("sms.dev")),
		status: make(map[string]string),
	}
}

func (d *Dev) SendSMS(ctx context.Context, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}
	id := "dev-" + uuid.NewString()

	d.mu.Lock()
	d.sent = append(d.sent, msg)
	d.status[id] = "delivered"
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "sms captured",
		slog.String("to", msg.To),
		slog.String("body", msg.Body),
		logger.MessageID(id),
	)
	return Result{ID: id, Status: "delivered"}, nil
}

func (d *Dev) Status(_ context.Context, id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.status[id]
	if !ok {
		return "", fmt.Errorf("%w: unknown message id %q", ErrInvalidMessage, id)
	}
	return s, nil
}

// Sent returns a copy of every captured message.
func (d *Dev) Sent() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Message, len(d.sent))
	copy(out, d.sent)
	return out
}
