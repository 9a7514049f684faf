package realtime

import "encoding/json"

// Client-to-server events.
const (
	EventAuthenticate = "authenticate"
	EventSubscribe    = "subscribe"
)

// Server-to-client events.
const (
	EventNotification  = "notification"
	EventAuthenticated = "authenticated"
	EventError         = "error"
)

// ClientFrame is what a socket client sends. Both authenticate and
// subscribe bind the connection to UserID.
type ClientFrame struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
}

// ServerFrame is what the hub writes to a socket.
type ServerFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(ServerFrame{Event: event, Data: data})
}
