package sms

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sender delivers a single text message.
type Sender interface {
	SendSMS(ctx context.Context, msg Message) (Result, error)
}

// StatusChecker is implemented by providers that expose delivery state.
type StatusChecker interface {
	Status(ctx context.Context, id string) (string, error)
}

// Message is one outbound SMS. An empty From uses the configured number.
type Message struct {
	To   string `json:"to"`
	Body string `json:"body"`
	From string `json:"from,omitempty"`
}

// Result is what the provider returned for an accepted message.
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// maxBodyLength is the ceiling for a concatenated message.
const maxBodyLength = 1600

var phoneRegex = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)

// ValidPhone reports whether s is a plausible E.164 number.
func ValidPhone(s string) bool {
	return phoneRegex.MatchString(strings.TrimSpace(s))
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: To is required", ErrInvalidMessage)
	}
	if !ValidPhone(m.To) {
		return fmt.Errorf("%w: To must be an E.164 phone number", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: Body is required", ErrInvalidMessage)
	}
	if len(m.Body) > maxBodyLength {
		return fmt.Errorf("%w: Body exceeds %d characters", ErrInvalidMessage, maxBodyLength)
	}
	return nil
}

// SendBulk sends messages one after another. Results line up with messages;
// failed entries hold a zero Result and their errors are joined.
func SendBulk(ctx context.Context, s Sender, messages ...Message) ([]Result, error) {
	results := make([]Result, len(messages))
	var errs []error
	for i, m := range messages {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := s.SendSMS(ctx, m)
		if err != nil {
			errs = append(errs, fmt.Errorf("message %d to %s: %w", i, m.To, err))
			continue
		}
		results[i] = res
	}
	return results, errors.Join(errs...)
}
