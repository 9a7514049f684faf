package notifications

import (
	"html"
	"maps"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Channel payloads carried in queue envelopes. Field names are the wire
// keys of the envelope data map.
type (
	EmailPayload struct {
		NotificationID string `json:"notification_id,omitempty"`
		To             string `json:"to"`
		Subject        string `json:"subject"`
		HTML           string `json:"html"`
		Tag            string `json:"tag,omitempty"`
	}

	SMSPayload struct {
		NotificationID string `json:"notification_id,omitempty"`
		To             string `json:"to"`
		Body           string `json:"body"`
	}

	InAppPayload struct {
		NotificationID string         `json:"notification_id,omitempty"`
		UserID         string         `json:"user_id"`
		Title          string         `json:"title"`
		Message        string         `json:"message"`
		Payload        map[string]any `json:"payload,omitempty"`
	}
)

// envelopeData builds the channel payload for rec, tagged with its id.
// Email bodies wrap the escaped message in a paragraph unless the request
// payload carries its own "html" string.
func envelopeData(rec Record) map[string]any {
	data := map[string]any{queue.NotificationIDKey: rec.ID}
	switch rec.Type {
	case queue.TypeEmail:
		body := "<p>" + html.EscapeString(rec.Message) + "</p>"
		if custom, ok := rec.Payload["html"].(string); ok && custom != "" {
			body = custom
		}
		data["to"] = rec.To
		data["subject"] = rec.Title
		data["html"] = body
		if tag, ok := rec.Payload["tag"].(string); ok && tag != "" {
			data["tag"] = tag
		}
	case queue.TypeSMS:
		data["to"] = rec.To
		data["body"] = rec.Message
	case queue.TypeInApp:
		data["user_id"] = rec.UserID
		data["title"] = rec.Title
		data["message"] = rec.Message
		if len(rec.Payload) > 0 {
			data["payload"] = maps.Clone(rec.Payload)
		}
	}
	return data
}
