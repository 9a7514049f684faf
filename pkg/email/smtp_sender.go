package email

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"

	"gopkg.in/gomail.v2"
)

type smtpSender struct {
	config  Config
	deliver func(msgs ...*gomail.Message) error
}

// NewSMTPSender creates a sender that relays through a plain SMTP server.
// Credentials are optional; an empty username skips authentication.
func NewSMTPSender(cfg Config) (Sender, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("%w: SMTPHost is required", ErrInvalidConfig)
	}
	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return nil, fmt.Errorf("%w: SMTPPort must be between 1 and 65535", ErrInvalidConfig)
	}
	if err := cfg.validateIdentity(); err != nil {
		return nil, err
	}

	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return &smtpSender{config: cfg, deliver: d.DialAndSend}, nil
}

// SendEmail builds a MIME message and relays it. The dial happens off the
// caller goroutine so a cancelled context returns promptly.
func (s *smtpSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SenderEmail)
	m.SetHeader("Reply-To", s.config.SupportEmail)
	m.SetHeader("To", params.SendTo)
	m.SetHeader("Subject", params.Subject)
	if params.Tag != "" {
		m.SetHeader("X-Tag", params.Tag)
	}
	m.SetBody("text/html", params.BodyHTML)

	done := make(chan error, 1)
	go func() { done <- s.deliver(m) }()

	select {
	case <-ctx.Done():
		return errors.Join(ErrFailedToSendEmail, ctx.Err())
	case err := <-done:
		if err == nil {
			return nil
		}
		// Dial-time failures such as a 535 auth error surface unwrapped.
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) && tpErr.Code >= 500 && tpErr.Code < 600 {
			return errors.Join(ErrFailedToSendEmail, ErrRejected, err)
		}
		return errors.Join(ErrFailedToSendEmail, err)
	}
}
