package sms

import (
	"log/slog"
	"net/http"
)

type options struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// Option tweaks a provider client.
type Option func(*options)

// WithHTTPClient replaces the pooled client built from Config.Timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithBaseURL points the Twilio driver at a different API host.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
