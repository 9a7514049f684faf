package email

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mrz1836/postmark"
)

// Postmark API error codes that will not change on retry.
// See https://postmarkapp.com/developer/api/overview#error-codes.
var postmarkRejectCodes = []int64{
	10,  // bad or missing server token
	300, // invalid email request
	400, // sender signature not found
	401, // sender signature not confirmed
	406, // inactive recipient
	412, // account pending approval
}

type postmarkClient struct {
	client *postmark.Client
	config Config
}

// NewPostmarkClient creates a Postmark-backed email sender.
// Both tokens are required for runtime operation - this enforces
// explicit configuration rather than silent failures in production.
func NewPostmarkClient(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if err := cfg.validateIdentity(); err != nil {
		return nil, err
	}

	return &postmarkClient{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// MustNewPostmarkClient creates a Postmark client that panics on invalid config.
func MustNewPostmarkClient(cfg Config) Sender {
	client, err := NewPostmarkClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// SendEmail sends through Postmark's transactional API with open and
// HTML link tracking. Reply-To points at the support address.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	return classifyPostmark(resp, err)
}

// classifyPostmark turns a Postmark reply into a send error. Error codes come
// back in the JSON body of a 4xx reply or, rarely, of a 200.
func classifyPostmark(resp postmark.EmailResponse, err error) error {
	code, message := resp.ErrorCode, resp.Message
	var apiErr postmark.APIError
	if errors.As(err, &apiErr) {
		code, message = apiErr.ErrorCode, apiErr.Message
	}

	switch {
	case err == nil && code == 0:
		return nil
	case code == 0:
		return errors.Join(ErrFailedToSendEmail, err)
	}

	providerErr := fmt.Errorf("postmark error %d: %s", code, message)
	if slices.Contains(postmarkRejectCodes, code) {
		return errors.Join(ErrFailedToSendEmail, ErrRejected, providerErr)
	}
	return errors.Join(ErrFailedToSendEmail, providerErr)
}
