package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestNotificationID(t *testing.T) {
	attr := logger.NotificationID("n-1")
	require.Equal(t, "notification_id", attr.Key)
	assert.Equal(t, "n-1", attr.Value.String())

	assert.True(t, logger.NotificationID("").Equal(slog.Attr{}))
}

func TestPipelineAttrs(t *testing.T) {
	assert.Equal(t, "email", logger.NotificationType("email").Value.String())
	assert.Equal(t, int64(2), logger.Attempt(2).Value.Int64())
	assert.Equal(t, int64(3), logger.MaxAttempts(3).Value.Int64())
	assert.Equal(t, "notifications_retry", logger.Lane("notifications_retry").Value.String())
	assert.Equal(t, "dropped", logger.Outcome("dropped").Value.String())
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
	assert.Equal(t, "consumer", logger.Component("consumer").Value.String())
}

func TestUserID(t *testing.T) {
	attr := logger.UserID("123")
	require.Equal(t, "user_id", attr.Key)
	assert.Equal(t, "123", attr.Value.Any())
	assert.True(t, logger.UserID(nil).Equal(slog.Attr{}))
}

func TestRequestID(t *testing.T) {
	attr := logger.RequestID("abc")
	require.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.Any())
}
