package notifications_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/sms"
)

func TestEmailHandler(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"notification_id": "n1",
		"to":              "user@example.com",
		"subject":         "Hi",
		"html":            "<p>x</p>",
		"tag":             "welcome",
	}
	params := email.SendEmailParams{SendTo: "user@example.com", Subject: "Hi", BodyHTML: "<p>x</p>", Tag: "welcome"}

	tests := []struct {
		name      string
		sendErr   error
		wantErr   bool
		permanent bool
	}{
		{"success", nil, false, false},
		{"transient failure", email.ErrFailedToSendEmail, true, false},
		{"rejected by provider", errors.Join(email.ErrFailedToSendEmail, email.ErrRejected), true, true},
		{"invalid params", email.ErrInvalidParams, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := new(mockEmailSender)
			sender.On("SendEmail", mock.Anything, params).Return(tt.sendErr).Once()

			err := notifications.EmailHandler(sender).Deliver(context.Background(), data)
			if !tt.wantErr {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.permanent, queue.IsPermanent(err))
			}
			sender.AssertExpectations(t)
		})
	}
}

func TestSMSHandler(t *testing.T) {
	t.Parallel()

	data := map[string]any{"to": "+15551234567", "body": "code"}
	msg := sms.Message{To: "+15551234567", Body: "code"}

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		sender := new(mockSMSSender)
		sender.On("SendSMS", mock.Anything, msg).Return(sms.Result{ID: "SM1"}, nil)
		assert.NoError(t, notifications.SMSHandler(sender).Deliver(context.Background(), data))
	})

	t.Run("rejected is permanent", func(t *testing.T) {
		t.Parallel()

		sender := new(mockSMSSender)
		sender.On("SendSMS", mock.Anything, msg).Return(sms.Result{}, errors.Join(sms.ErrFailedToSend, sms.ErrRejected))
		err := notifications.SMSHandler(sender).Deliver(context.Background(), data)
		assert.True(t, queue.IsPermanent(err))
	})

	t.Run("provider outage is retryable", func(t *testing.T) {
		t.Parallel()

		sender := new(mockSMSSender)
		sender.On("SendSMS", mock.Anything, msg).Return(sms.Result{}, sms.ErrFailedToSend)
		err := notifications.SMSHandler(sender).Deliver(context.Background(), data)
		require.Error(t, err)
		assert.False(t, queue.IsPermanent(err))
	})

	t.Run("payload of wrong shape is permanent", func(t *testing.T) {
		t.Parallel()

		err := notifications.SMSHandler(new(mockSMSSender)).Deliver(context.Background(), map[string]any{"to": 42})
		assert.True(t, queue.IsPermanent(err))
	})
}

func TestInAppHandler(t *testing.T) {
	t.Parallel()

	t.Run("merges payload into the frame", func(t *testing.T) {
		t.Parallel()

		pusher := new(mockPusher)
		pusher.On("BroadcastToUser", mock.Anything, "u1", map[string]any{
			"id":      "n1",
			"title":   "Overridden",
			"message": "hello",
			"link":    "/x",
		}).Return(nil)

		err := notifications.InAppHandler(pusher).Deliver(context.Background(), map[string]any{
			"notification_id": "n1",
			"user_id":         "u1",
			"title":           "Original",
			"message":         "hello",
			"payload":         map[string]any{"title": "Overridden", "link": "/x"},
		})
		require.NoError(t, err)
		pusher.AssertExpectations(t)
	})

	t.Run("missing user is permanent", func(t *testing.T) {
		t.Parallel()

		err := notifications.InAppHandler(new(mockPusher)).Deliver(context.Background(), map[string]any{"title": "x"})
		assert.True(t, queue.IsPermanent(err))
		assert.ErrorIs(t, err, realtime.ErrUserRequired)
	})

	t.Run("closed hub is retryable", func(t *testing.T) {
		t.Parallel()

		pusher := new(mockPusher)
		pusher.On("BroadcastToUser", mock.Anything, "u1", mock.Anything).Return(realtime.ErrHubClosed)
		err := notifications.InAppHandler(pusher).Deliver(context.Background(), map[string]any{"user_id": "u1"})
		assert.ErrorIs(t, err, realtime.ErrHubClosed)
		assert.False(t, queue.IsPermanent(err))
	})
}

func TestRegisterHandlers(t *testing.T) {
	t.Parallel()

	d := queue.NewDispatcher()
	require.NoError(t, notifications.RegisterHandlers(d, new(mockEmailSender), new(mockSMSSender), new(mockPusher)))
	assert.ElementsMatch(t, queue.Types(), d.Registered())
}
