package httpserver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/httpserver"
)

func startServer(t *testing.T, ctx context.Context, srv *httpserver.Server, h http.Handler) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, h) }()
	select {
	case <-srv.Ready():
	case err := <-done:
		require.FailNow(t, "server did not start", err)
	case <-time.After(time.Second):
		require.FailNow(t, "server did not start in time")
	}
	return done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not finish")
	}
}

func TestRun_ServesUntilContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"), httpserver.WithShutdownTimeout(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := startServer(t, ctx, srv, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	resp, err := http.Get("http://" + srv.Addr().String())
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	waitDone(t, done)
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	var hooked atomic.Int32
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(100*time.Millisecond),
		httpserver.WithShutdownHook(func() { hooked.Add(1) }),
	)
	done := startServer(t, context.Background(), srv, nil)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()), "repeated shutdown is a no-op")
	waitDone(t, done)
	assert.Equal(t, int32(1), hooked.Load())
}

func TestShutdownBeforeRun(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"))
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Nil(t, srv.Addr())
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()
		err := httpserver.New(httpserver.WithAddr(":invalid")).Run(context.Background(), nil)
		assert.ErrorIs(t, err, httpserver.ErrStart)
	})

	t.Run("already running", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"), httpserver.WithShutdownTimeout(50*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		done := startServer(t, ctx, srv, nil)

		err := srv.Run(context.Background(), nil)
		assert.ErrorIs(t, err, httpserver.ErrStart)
		assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)

		cancel()
		waitDone(t, done)
	})
}

func TestOptionPanics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func()
	}{
		{"addr", func() { httpserver.WithAddr("") }},
		{"read header", func() { httpserver.WithReadHeaderTimeout(0) }},
		{"read", func() { httpserver.WithReadTimeout(-time.Second) }},
		{"write", func() { httpserver.WithWriteTimeout(-time.Second) }},
		{"idle", func() { httpserver.WithIdleTimeout(-time.Second) }},
		{"shutdown", func() { httpserver.WithShutdownTimeout(-time.Second) }},
		{"shutdown hook", func() { httpserver.WithShutdownHook(nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Panics(t, tt.fn)
		})
	}
}

func TestHealthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		httpserver.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		h := httpserver.ReadinessHandler(nil, time.Second, map[string]httpserver.Check{
			"broker": func(context.Context) error { return nil },
			"store":  func(context.Context) error { return nil },
		})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"broker":"ok","store":"ok"}}`, rec.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()
		h := httpserver.ReadinessHandler(nil, time.Second, map[string]httpserver.Check{
			"broker": func(context.Context) error { return errors.New("connection closed") },
			"store":  func(context.Context) error { return nil },
		})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"unavailable","checks":{"broker":"unavailable","store":"ok"}}`, rec.Body.String())
	})

	t.Run("check honours timeout", func(t *testing.T) {
		t.Parallel()
		h := httpserver.ReadinessHandler(nil, 20*time.Millisecond, map[string]httpserver.Check{
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
