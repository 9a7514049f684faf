package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

func startHub(t *testing.T, opts ...realtime.Option) (*realtime.Hub, string) {
	t.Helper()
	hub := realtime.NewHub(append([]realtime.Option{realtime.WithLogger(logger.Discard())}, opts...)...)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, ws.ReadJSON(&frame))
	return frame
}

func bindUser(t *testing.T, ws *websocket.Conn, event, userID string) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(realtime.ClientFrame{Event: event, UserID: userID}))
	frame := readFrame(t, ws)
	require.Equal(t, realtime.EventAuthenticated, frame["event"])
}

func TestHub_BroadcastToUser(t *testing.T) {
	t.Parallel()

	hub, url := startHub(t)
	alice := dial(t, url)
	bob := dial(t, url)
	bindUser(t, alice, realtime.EventAuthenticate, "alice")
	bindUser(t, bob, realtime.EventSubscribe, "bob")

	require.Equal(t, 1, hub.UserConnections("alice"))

	err := hub.BroadcastToUser(context.Background(), "alice", map[string]any{"title": "Hi"})
	require.NoError(t, err)

	frame := readFrame(t, alice)
	assert.Equal(t, realtime.EventNotification, frame["event"])
	assert.Equal(t, map[string]any{"title": "Hi"}, frame["data"])

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's notification")
}

func TestHub_BroadcastToUser_NoConnection(t *testing.T) {
	t.Parallel()

	hub, _ := startHub(t)
	assert.NoError(t, hub.BroadcastToUser(context.Background(), "ghost", "hello"))
	assert.ErrorIs(t, hub.BroadcastToUser(context.Background(), "", "hello"), realtime.ErrUserRequired)
}

func TestHub_MultipleSocketsPerUser(t *testing.T) {
	t.Parallel()

	hub, url := startHub(t)
	tab1 := dial(t, url)
	tab2 := dial(t, url)
	bindUser(t, tab1, realtime.EventAuthenticate, "carol")
	bindUser(t, tab2, realtime.EventAuthenticate, "carol")

	require.NoError(t, hub.BroadcastToUser(context.Background(), "carol", "ping"))
	assert.Equal(t, "ping", readFrame(t, tab1)["data"])
	assert.Equal(t, "ping", readFrame(t, tab2)["data"])
}

func TestHub_BroadcastToAll(t *testing.T) {
	t.Parallel()

	hub, url := startHub(t)
	bound := dial(t, url)
	anon := dial(t, url)
	bindUser(t, bound, realtime.EventAuthenticate, "dave")

	require.Eventually(t, func() bool { return hub.Connections() == 2 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.BroadcastToAll(context.Background(), "maintenance"))

	assert.Equal(t, "maintenance", readFrame(t, bound)["data"])
	assert.Equal(t, "maintenance", readFrame(t, anon)["data"])
}

func TestHub_ClientErrors(t *testing.T) {
	t.Parallel()

	_, url := startHub(t)
	ws := dial(t, url)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, realtime.EventError, readFrame(t, ws)["event"])

	require.NoError(t, ws.WriteJSON(realtime.ClientFrame{Event: realtime.EventAuthenticate}))
	assert.Equal(t, realtime.EventError, readFrame(t, ws)["event"])

	require.NoError(t, ws.WriteJSON(realtime.ClientFrame{Event: "dance", UserID: "x"}))
	assert.Equal(t, realtime.EventError, readFrame(t, ws)["event"])

	bindUser(t, ws, realtime.EventAuthenticate, "erin")
	require.NoError(t, ws.WriteJSON(realtime.ClientFrame{Event: realtime.EventAuthenticate, UserID: "mallory"}))
	frame := readFrame(t, ws)
	assert.Equal(t, realtime.EventError, frame["event"])
	assert.Contains(t, frame["data"].(map[string]any)["message"], "already_bound")
}

func TestHub_DisconnectRemovesClient(t *testing.T) {
	t.Parallel()

	hub, url := startHub(t)
	ws := dial(t, url)
	bindUser(t, ws, realtime.EventAuthenticate, "frank")
	require.Equal(t, 1, hub.UserConnections("frank"))

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return hub.UserConnections("frank") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_SlowConsumerDropsFrames(t *testing.T) {
	t.Parallel()

	var dropped atomic.Int32
	hub, url := startHub(t,
		realtime.WithSendBuffer(1),
		realtime.WithDropHook(func(string) { dropped.Add(1) }),
	)
	ws := dial(t, url)
	bindUser(t, ws, realtime.EventAuthenticate, "gina")

	// The client never reads, so the socket and the one-slot buffer fill up.
	payload := strings.Repeat("x", 64*1024)
	for range 200 {
		require.NoError(t, hub.BroadcastToUser(context.Background(), "gina", payload))
	}
	assert.Positive(t, dropped.Load())
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	hub := realtime.NewHub(realtime.WithLogger(logger.Discard()))
	srv := httptest.NewServer(hub)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Connections())

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	assert.ErrorIs(t, hub.BroadcastToAll(context.Background(), "x"), realtime.ErrHubClosed)
	assert.NoError(t, hub.Close())

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
