package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sender delivers a single transactional email.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`       // Email address of the recipient
	Subject  string `json:"subject"`       // Subject of the email
	BodyHTML string `json:"body_html"`     // HTML body of the email
	Tag      string `json:"tag,omitempty"` // Optional
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidAddress reports whether s looks like a deliverable email address.
func ValidAddress(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// Validate checks that the recipient, subject and body are present.
func (p SendEmailParams) Validate() error {
	if strings.TrimSpace(p.SendTo) == "" {
		return fmt.Errorf("%w: SendTo is required", ErrInvalidParams)
	}
	if !ValidAddress(p.SendTo) {
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.BodyHTML) == "" {
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidParams)
	}
	return nil
}

// SendBulk sends every message in order through s and joins the failures.
// One failed message does not stop the rest.
func SendBulk(ctx context.Context, s Sender, messages ...SendEmailParams) error {
	var errs []error
	for i, m := range messages {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.SendEmail(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("message %d to %s: %w", i, m.SendTo, err))
		}
	}
	return errors.Join(errs...)
}
