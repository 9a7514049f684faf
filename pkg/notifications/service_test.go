package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func newService(store notifications.Storage, pub notifications.Publisher) *notifications.Service {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return notifications.NewService(store, pub,
		notifications.WithServiceLogger(logger.Discard()),
		notifications.WithClock(func() time.Time { return fixed }),
	)
}

func TestService_Send(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("email is stored pending and published", func(t *testing.T) {
		t.Parallel()

		store := notifications.NewMemoryStorage()
		pub := &recordingPublisher{}
		svc := newService(store, pub)

		rec, err := svc.Send(ctx, notifications.Request{
			UserID:  "u1",
			Type:    "email",
			To:      "user@example.com",
			Title:   "Welcome",
			Message: "Hi <b>there</b>",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, notifications.StatusPending, rec.Status)
		assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), rec.CreatedAt)

		stored, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, notifications.StatusPending, stored.Status)

		msgs := pub.Published()
		require.Len(t, msgs, 1)
		assert.Equal(t, queue.TypeEmail, msgs[0].Type)
		assert.Equal(t, map[string]any{
			"notification_id": rec.ID,
			"to":              "user@example.com",
			"subject":         "Welcome",
			"html":            "<p>Hi &lt;b&gt;there&lt;/b&gt;</p>",
		}, msgs[0].Data)
	})

	t.Run("email payload can supply html and tag", func(t *testing.T) {
		t.Parallel()

		pub := &recordingPublisher{}
		svc := newService(notifications.NewMemoryStorage(), pub)

		_, err := svc.Send(ctx, notifications.Request{
			UserID: "u1", Type: "email", To: "user@example.com", Title: "T", Message: "m",
			Payload: map[string]any{"html": "<h1>Custom</h1>", "tag": "welcome"},
		})
		require.NoError(t, err)
		data := pub.Published()[0].Data
		assert.Equal(t, "<h1>Custom</h1>", data["html"])
		assert.Equal(t, "welcome", data["tag"])
	})

	t.Run("sms payload", func(t *testing.T) {
		t.Parallel()

		pub := &recordingPublisher{}
		svc := newService(notifications.NewMemoryStorage(), pub)

		rec, err := svc.Send(ctx, notifications.Request{UserID: "u1", Type: "sms", To: "+15551234567", Message: "Code 42"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"notification_id": rec.ID,
			"to":              "+15551234567",
			"body":            "Code 42",
		}, pub.Published()[0].Data)
	})

	t.Run("in-app payload", func(t *testing.T) {
		t.Parallel()

		pub := &recordingPublisher{}
		svc := newService(notifications.NewMemoryStorage(), pub)

		rec, err := svc.Send(ctx, notifications.Request{
			UserID: "u9", Type: "in-app", Title: "New follower", Message: "Ann followed you",
			Payload: map[string]any{"link": "/users/ann"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"notification_id": rec.ID,
			"user_id":         "u9",
			"title":           "New follower",
			"message":         "Ann followed you",
			"payload":         map[string]any{"link": "/users/ann"},
		}, pub.Published()[0].Data)
	})

	t.Run("invalid request stores nothing", func(t *testing.T) {
		t.Parallel()

		store := notifications.NewMemoryStorage()
		pub := &recordingPublisher{}
		svc := newService(store, pub)

		rec, err := svc.Send(ctx, notifications.Request{Type: "email"})
		assert.Nil(t, rec)
		assert.ErrorIs(t, err, notifications.ErrInvalidRequest)
		assert.Equal(t, 0, store.Len())
		assert.Empty(t, pub.Published())
	})

	t.Run("publish failure marks the record failed", func(t *testing.T) {
		t.Parallel()

		store := notifications.NewMemoryStorage()
		brokerDown := errors.New("broker down")
		svc := newService(store, &recordingPublisher{err: brokerDown})

		rec, err := svc.Send(ctx, notifications.Request{UserID: "u1", Type: "in-app", Message: "hi"})
		assert.Nil(t, rec)
		assert.ErrorIs(t, err, notifications.ErrPublish)
		assert.ErrorIs(t, err, brokerDown)

		recs, err := store.ListByUser(ctx, "u1", notifications.ListOptions{})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, notifications.StatusFailed, recs[0].Status)
		assert.Equal(t, "broker down", recs[0].Error)
	})
}

func TestService_ListAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifications.NewMemoryStorage()
	svc := newService(store, &recordingPublisher{})

	first, err := svc.Send(ctx, notifications.Request{UserID: "u1", Type: "in-app", Message: "one"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Message)

	recs, err := svc.List(ctx, "u1", notifications.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, notifications.ErrNotFound)
}
