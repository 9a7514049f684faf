package realtime

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Hub.
type Option func(*Hub)

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSendBuffer sets how many frames may wait per connection before new
// ones are dropped.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithCheckOrigin overrides the origin policy. The default accepts any origin.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// WithPingInterval sets the keepalive period. The read deadline is derived
// from it.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithDropHook registers fn to be called whenever a frame is dropped
// because a connection's buffer is full.
func WithDropHook(fn func(userID string)) Option {
	return func(h *Hub) {
		h.onDrop = fn
	}
}
