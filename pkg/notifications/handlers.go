package notifications

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/sms"
)

// Pusher delivers an in-app frame to a user's open sockets.
type Pusher interface {
	BroadcastToUser(ctx context.Context, userID string, data any) error
}

// EmailHandler sends email envelopes through s. Invalid parameters and
// provider rejections are not retried.
func EmailHandler(s email.Sender) queue.Handler {
	return queue.NewTypedHandler(func(ctx context.Context, p EmailPayload) error {
		err := s.SendEmail(ctx, email.SendEmailParams{
			SendTo:   p.To,
			Subject:  p.Subject,
			BodyHTML: p.HTML,
			Tag:      p.Tag,
		})
		if errors.Is(err, email.ErrInvalidParams) || errors.Is(err, email.ErrRejected) || errors.Is(err, email.ErrInvalidConfig) {
			return queue.Permanent(err)
		}
		return err
	})
}

// SMSHandler sends sms envelopes through s. Invalid messages and provider
// rejections are not retried.
func SMSHandler(s sms.Sender) queue.Handler {
	return queue.NewTypedHandler(func(ctx context.Context, p SMSPayload) error {
		_, err := s.SendSMS(ctx, sms.Message{To: p.To, Body: p.Body})
		if errors.Is(err, sms.ErrInvalidMessage) || errors.Is(err, sms.ErrRejected) || errors.Is(err, sms.ErrInvalidConfig) {
			return queue.Permanent(err)
		}
		return err
	})
}

// InAppHandler pushes in-app envelopes to the user's sockets. The frame data
// is the title and message merged with the request payload, with payload
// keys taking precedence, plus the record id. A user without an open
// socket is a successful delivery.
func InAppHandler(p Pusher) queue.Handler {
	return queue.NewTypedHandler(func(ctx context.Context, in InAppPayload) error {
		if in.UserID == "" {
			return queue.Permanent(fmt.Errorf("in-app payload: %w", realtime.ErrUserRequired))
		}
		frame := map[string]any{
			"title":   in.Title,
			"message": in.Message,
		}
		maps.Copy(frame, in.Payload)
		if in.NotificationID != "" {
			frame["id"] = in.NotificationID
		}
		err := p.BroadcastToUser(ctx, in.UserID, frame)
		if errors.Is(err, realtime.ErrEncodeFrame) {
			return queue.Permanent(err)
		}
		return err
	})
}

// RegisterHandlers wires the three channel handlers into d.
func RegisterHandlers(d *queue.Dispatcher, es email.Sender, ss sms.Sender, p Pusher) error {
	return errors.Join(
		d.Register(queue.TypeEmail, EmailHandler(es)),
		d.Register(queue.TypeSMS, SMSHandler(ss)),
		d.Register(queue.TypeInApp, InAppHandler(p)),
	)
}
