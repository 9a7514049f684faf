package notifications

import (
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/sanitizer"
	"github.com/dmitrymomot/notifykit/pkg/validator"
)

const (
	maxTitleLength   = 200
	maxMessageLength = 10000
)

// Request is an intake request as accepted by the HTTP API.
type Request struct {
	UserID  string         `json:"userId"`
	Type    string         `json:"type"`
	To      string         `json:"to"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Normalize trims free text, strips control characters and canonicalises
// the recipient for the request type. Titles become single-line because
// they are used as email subjects.
func (r Request) Normalize() Request {
	r.UserID = sanitizer.Trim(r.UserID)
	r.Type = sanitizer.Trim(r.Type)
	r.Title = sanitizer.SingleLine(sanitizer.RemoveControlChars(r.Title))
	r.Message = sanitizer.Text(r.Message)
	switch queue.NotificationType(r.Type) {
	case queue.TypeEmail:
		r.To = sanitizer.NormalizeEmail(r.To)
	case queue.TypeSMS:
		r.To = sanitizer.NormalizePhone(r.To)
	default:
		r.To = sanitizer.Trim(r.To)
	}
	return r
}

// maskRecipient hides most of the recipient for logging.
func maskRecipient(t queue.NotificationType, to string) string {
	switch t {
	case queue.TypeEmail:
		return sanitizer.MaskEmail(to)
	case queue.TypeSMS:
		return sanitizer.MaskPhone(to)
	default:
		return ""
	}
}

// Validate checks the request shape. The recipient format depends on type:
// an email address for email, an international phone number for sms, and
// nothing for in-app where the user id is the destination.
func (r Request) Validate() error {
	types := make([]string, 0, len(queue.Types()))
	for _, t := range queue.Types() {
		types = append(types, t.String())
	}

	rules := []validator.Rule{
		validator.Required("userId", r.UserID),
		validator.MaxLen("userId", r.UserID, 128),
		validator.OneOfString("type", r.Type, types),
		validator.MaxLen("title", r.Title, maxTitleLength),
		validator.Required("message", r.Message),
		validator.MaxLen("message", r.Message, maxMessageLength),
	}
	switch queue.NotificationType(r.Type) {
	case queue.TypeEmail:
		rules = append(rules,
			validator.ValidEmail("to", r.To),
			validator.Required("title", r.Title),
		)
	case queue.TypeSMS:
		rules = append(rules, validator.ValidPhone("to", r.To))
	}
	return validator.Apply(rules...)
}
