package queue

import (
	"encoding/json"
	"fmt"
)

// NotificationType selects the delivery channel and the handler that serves it.
type NotificationType string

const (
	TypeEmail NotificationType = "email"
	TypeSMS   NotificationType = "sms"
	TypeInApp NotificationType = "in-app"
)

// Valid reports whether t is one of the supported channels.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeEmail, TypeSMS, TypeInApp:
		return true
	}
	return false
}

func (t NotificationType) String() string { return string(t) }

// Types lists the supported notification types.
func Types() []NotificationType {
	return []NotificationType{TypeEmail, TypeSMS, TypeInApp}
}

// ParseType converts s into a supported NotificationType.
func ParseType(s string) (NotificationType, error) {
	t := NotificationType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// NotificationIDKey is the data key carrying the persisted record identifier.
const NotificationIDKey = "notification_id"

// Envelope is the unit of work carried through the broker.
// Attempts counts how many times it has been sent to the retry lane.
type Envelope struct {
	Type     NotificationType `json:"type"`
	Data     map[string]any   `json:"data"`
	Attempts int              `json:"attempts"`
}

// NotificationID returns the record identifier carried in Data, if any.
func (e Envelope) NotificationID() string {
	if id, ok := e.Data[NotificationIDKey].(string); ok {
		return id
	}
	return ""
}

// Encode serializes the envelope to its JSON wire form.
func Encode(e Envelope) ([]byte, error) {
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeEnvelope, err)
	}
	return b, nil
}

// DecodeEnvelope parses a message body. It fails on invalid JSON, a missing
// type, or a negative attempt counter. Unknown types decode fine and are left
// for the dispatcher to reject.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	if e.Attempts < 0 {
		return Envelope{}, fmt.Errorf("%w: negative attempts %d", ErrMalformedEnvelope, e.Attempts)
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	return e, nil
}

// cloneData deep-copies notification data so a handler cannot change what
// later attempts, observers and dead letters see.
func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneData(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
