package email

import (
	"io"
	"net/http"

	"gopkg.in/gomail.v2"
)

// NewSMTPSenderWithTransport swaps the network dial for fn so tests can
// inspect the rendered message.
func NewSMTPSenderWithTransport(cfg Config, fn func(from string, to []string, msg io.WriterTo) error) (Sender, error) {
	s, err := NewSMTPSender(cfg)
	if err != nil {
		return nil, err
	}
	s.(*smtpSender).deliver = func(msgs ...*gomail.Message) error {
		return gomail.Send(gomail.SendFunc(fn), msgs...)
	}
	return s, nil
}

// NewPostmarkClientWithBaseURL points the Postmark API client at baseURL.
func NewPostmarkClientWithBaseURL(cfg Config, baseURL string, hc *http.Client) (Sender, error) {
	s, err := NewPostmarkClient(cfg)
	if err != nil {
		return nil, err
	}
	c := s.(*postmarkClient).client
	c.BaseURL = baseURL
	c.HTTPClient = hc
	return s, nil
}
