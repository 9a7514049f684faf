package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 4096
	defaultBuffer  = 32
	defaultPingGap = 54 * time.Second
)

// Hub tracks live socket connections and pushes notification frames to
// them. A connection is anonymous until it sends an authenticate or
// subscribe frame binding it to a user.
type Hub struct {
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	sendBuffer   int
	pingInterval time.Duration
	onDrop       func(userID string)

	mu     sync.RWMutex
	conns  map[*conn]struct{}
	users  map[string]map[*conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

type conn struct {
	hub       *Hub
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	userID    string // guarded by hub.mu
}

// NewHub creates an empty hub. Mount it as an http.Handler.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:       slog.Default(),
		sendBuffer:   defaultBuffer,
		pingInterval: defaultPingGap,
		conns:        make(map[*conn]struct{}),
		users:        make(map[string]map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("realtime"))
	return h
}

// ServeHTTP upgrades the request and serves the connection until either
// side closes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "realtime hub is shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.DebugContext(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &conn{
		hub:  h,
		ws:   ws,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.conns[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	go c.writeLoop()
	c.readLoop()
}

// BroadcastToUser pushes data to every connection bound to userID. A user
// with no live connection is not an error and nothing is kept for later.
func (h *Hub) BroadcastToUser(ctx context.Context, userID string, data any) error {
	if userID == "" {
		return ErrUserRequired
	}
	frame, err := encodeFrame(EventNotification, data)
	if err != nil {
		return errors.Join(ErrEncodeFrame, err)
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	targets := make([]*conn, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.logger.DebugContext(ctx, "no active connection for user", logger.UserID(userID))
		return nil
	}
	for _, c := range targets {
		h.enqueue(ctx, c, userID, frame)
	}
	return nil
}

// BroadcastToAll pushes data to every open connection, bound or not.
func (h *Hub) BroadcastToAll(ctx context.Context, data any) error {
	frame, err := encodeFrame(EventNotification, data)
	if err != nil {
		return errors.Join(ErrEncodeFrame, err)
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	targets := make(map[*conn]string, len(h.conns))
	for c := range h.conns {
		targets[c] = c.userID
	}
	h.mu.RUnlock()

	for c, uid := range targets {
		h.enqueue(ctx, c, uid, frame)
	}
	return nil
}

// Connections reports the number of open sockets.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// UserConnections reports how many sockets are bound to userID.
func (h *Hub) UserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Close sends a going-away frame to every connection, closes them and
// waits for their goroutines to finish. Safe to call more than once.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range conns {
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		h.remove(c)
	}
	h.wg.Wait()
	return nil
}

func (h *Hub) enqueue(ctx context.Context, c *conn, userID string, frame []byte) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		h.logger.WarnContext(ctx, "dropping frame for slow connection", logger.UserID(userID))
		if h.onDrop != nil {
			h.onDrop(userID)
		}
	}
}

func (h *Hub) bind(c *conn, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.userID == userID {
		return nil
	}
	if c.userID != "" {
		return ErrAlreadyBound
	}
	c.userID = userID
	set, ok := h.users[userID]
	if !ok {
		set = make(map[*conn]struct{})
		h.users[userID] = set
	}
	set[c] = struct{}{}
	return nil
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	if c.userID != "" {
		if set, ok := h.users[c.userID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.users, c.userID)
			}
		}
	}
	h.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) readLoop() {
	defer c.hub.wg.Done()
	defer c.hub.remove(c)

	pongWait := c.hub.pingInterval * 10 / 9
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket closed unexpectedly", logger.Error(err))
			}
			return
		}
		c.handle(raw)
	}
}

func (c *conn) handle(raw []byte) {
	var in ClientFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		c.reply(EventError, map[string]string{"message": "malformed frame"})
		return
	}

	switch in.Event {
	case EventAuthenticate, EventSubscribe:
		if in.UserID == "" {
			c.reply(EventError, map[string]string{"message": ErrUserRequired.Error()})
			return
		}
		if err := c.hub.bind(c, in.UserID); err != nil {
			c.reply(EventError, map[string]string{"message": err.Error()})
			return
		}
		c.hub.logger.Info("socket bound to user", logger.UserID(in.UserID))
		c.reply(EventAuthenticated, map[string]string{"user_id": in.UserID})
	default:
		c.reply(EventError, map[string]string{"message": ErrUnknownEvent.Error()})
	}
}

func (c *conn) reply(event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	uid := c.userID
	c.hub.mu.RUnlock()
	c.hub.enqueue(context.Background(), c, uid, frame)
}

func (c *conn) writeLoop() {
	defer c.hub.wg.Done()

	ticker := time.NewTicker(c.hub.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.remove(c)
				return
			}
		}
	}
}
