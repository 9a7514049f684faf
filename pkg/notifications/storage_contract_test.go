package notifications_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// testStorageContract runs the behaviour every Storage implementation shares.
// Each case uses fresh ids and user ids so stores backed by a shared database
// can run the cases in parallel.
func testStorageContract(t *testing.T, newStorage func(t *testing.T) notifications.Storage) {
	t.Helper()

	// Millisecond precision is the lowest common denominator of the stores.
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fresh := func(prefix string) string { return prefix + "-" + uuid.NewString() }

	t.Run("create and get", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStorage(t)

		rec := newRecord(fresh("n"), fresh("u"), base)
		rec.To = "user@example.com"
		rec.Payload = map[string]any{"template": "welcome"}
		require.NoError(t, s.Create(ctx, rec))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.UserID, got.UserID)
		assert.Equal(t, rec.Type, got.Type)
		assert.Equal(t, "user@example.com", got.To)
		assert.Equal(t, rec.Title, got.Title)
		assert.Equal(t, notifications.StatusPending, got.Status)
		assert.Equal(t, "welcome", got.Payload["template"])
		assert.True(t, base.Equal(got.CreatedAt))
		assert.True(t, base.Equal(got.UpdatedAt), "UpdatedAt starts at CreatedAt")
		assert.Nil(t, got.SentAt)
		assert.Zero(t, got.Attempts)
	})

	t.Run("zero created at is filled in", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStorage(t)

		rec := newRecord(fresh("n"), fresh("u"), time.Time{})
		require.NoError(t, s.Create(ctx, rec))
		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStorage(t)
		id := fresh("missing")

		_, err := s.Get(ctx, id)
		assert.ErrorIs(t, err, notifications.ErrNotFound)
		assert.ErrorIs(t, s.MarkSent(ctx, id, base), notifications.ErrNotFound)
		assert.ErrorIs(t, s.MarkFailed(ctx, id, "x"), notifications.ErrNotFound)
		assert.ErrorIs(t, s.SetAttempts(ctx, id, 1), notifications.ErrNotFound)
	})

	t.Run("invalid and duplicate records", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStorage(t)

		bad := newRecord(fresh("n"), fresh("u"), base)
		bad.Type = "pigeon"
		assert.ErrorIs(t, s.Create(ctx, bad), notifications.ErrInvalidRecord)

		rec := newRecord(fresh("n"), fresh("u"), base)
		require.NoError(t, s.Create(ctx, rec))
		assert.ErrorIs(t, s.Create(ctx, rec), notifications.ErrInvalidRecord)
	})

	t.Run("list by user", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStorage(t)
		user := fresh("u")

		ids := make(map[string]string)
		for i, name := range []string{"a", "b", "c", "d"} {
			ids[name] = fresh(name)
			require.NoError(t, s.Create(ctx, newRecord(ids[name], user, base.Add(time.Duration(i)*time.Minute))))
		}
		require.NoError(t, s.Create(ctx, newRecord(fresh("other"), fresh("u"), base.Add(time.Hour))))
		require.NoError(t, s.MarkSent(ctx, ids["b"], base))
		require.NoError(t, s.MarkFailed(ctx, ids["c"], "down"))

		names := func(recs []notifications.Record) []string {
			byID := make(map[string]string, len(ids))
			for name, id := range ids {
				byID[id] = name
			}
			out := make([]string, 0, len(recs))
			for _, r := range recs {
				out = append(out, byID[r.ID])
			}
			return out
		}

		tests := []struct {
			name string
			opts notifications.ListOptions
			want []string
		}{
			{"newest first", notifications.ListOptions{}, []string{"d", "c", "b", "a"}},
			{"limit", notifications.ListOptions{Limit: 2}, []string{"d", "c"}},
			{"offset", notifications.ListOptions{Offset: 1, Limit: 2}, []string{"c", "b"}},
			{"offset past end", notifications.ListOptions{Offset: 10}, []string{}},
			{"sent only", notifications.ListOptions{Status: notifications.StatusSent}, []string{"b"}},
			{"failed only", notifications.ListOptions{Status: notifications.StatusFailed}, []string{"c"}},
			{"pending page", notifications.ListOptions{Status: notifications.StatusPending, Limit: 1, Offset: 1}, []string{"a"}},
		}
		for _, tt := range tests {
			recs, err := s.ListByUser(ctx, user, tt.opts)
			require.NoError(t, err, tt.name)
			assert.Equal(t, tt.want, names(recs), tt.name)
		}

		recs, err := s.ListByUser(ctx, fresh("nobody"), notifications.ListOptions{})
		require.NoError(t, err)
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
	})

	t.Run("sent at is written once", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStorage(t)
		rec := newRecord(fresh("n"), fresh("u"), base)
		require.NoError(t, s.Create(ctx, rec))

		first := base.Add(time.Minute)
		require.NoError(t, s.MarkSent(ctx, rec.ID, first))
		require.NoError(t, s.MarkSent(ctx, rec.ID, first.Add(time.Hour)))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, notifications.StatusSent, got.Status)
		require.NotNil(t, got.SentAt)
		assert.True(t, first.Equal(*got.SentAt), "got %s", got.SentAt)
	})

	t.Run("sent is terminal", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStorage(t)
		rec := newRecord(fresh("n"), fresh("u"), base)
		require.NoError(t, s.Create(ctx, rec))

		require.NoError(t, s.MarkSent(ctx, rec.ID, base))
		require.NoError(t, s.MarkFailed(ctx, rec.ID, "late failure"))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, notifications.StatusSent, got.Status)
		assert.Empty(t, got.Error)
	})

	t.Run("failed keeps the reason and can still be sent", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStorage(t)
		rec := newRecord(fresh("n"), fresh("u"), base)
		require.NoError(t, s.Create(ctx, rec))

		require.NoError(t, s.MarkFailed(ctx, rec.ID, "smtp down"))
		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, notifications.StatusFailed, got.Status)
		assert.Equal(t, "smtp down", got.Error)
		assert.Nil(t, got.SentAt)

		require.NoError(t, s.MarkSent(ctx, rec.ID, base))
		got, err = s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, notifications.StatusSent, got.Status)
		assert.Empty(t, got.Error, "sending clears the failure reason")
	})

	t.Run("attempts never go down", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStorage(t)
		rec := newRecord(fresh("n"), fresh("u"), base)
		require.NoError(t, s.Create(ctx, rec))

		require.NoError(t, s.SetAttempts(ctx, rec.ID, 3))
		require.NoError(t, s.SetAttempts(ctx, rec.ID, 2))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Attempts)
		assert.True(t, got.UpdatedAt.After(base), "updates move UpdatedAt")
	})
}
