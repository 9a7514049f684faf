package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// Twilio sends messages through the Twilio Programmable Messaging REST API.
type Twilio struct {
	sid     string
	token   string
	from    string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

type twilioMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewTwilio validates the account credentials and returns a ready client.
func NewTwilio(cfg Config, opts ...Option) (*Twilio, error) {
	if err := cfg.validateTwilio(); err != nil {
		return nil, err
	}
	o := buildOptions(cfg.Timeout, opts)
	if o.baseURL == "" {
		o.baseURL = twilioBaseURL
	}
	return &Twilio{
		sid:     cfg.TwilioSID,
		token:   cfg.TwilioAuthToken,
		from:    cfg.TwilioFrom,
		baseURL: strings.TrimRight(o.baseURL, "/"),
		client:  o.client,
		logger:  o.logger.With(logger.Component("sms.twilio")),
	}, nil
}

func (t *Twilio) SendSMS(ctx context.Context, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}
	from := msg.From
	if from == "" {
		from = t.from
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", from)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.sid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, errors.Join(ErrFailedToSend, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out twilioMessage
	if err := t.do(req, &out); err != nil {
		t.logger.ErrorContext(ctx, "sms send failed", slog.String("to", msg.To), logger.Error(err))
		return Result{}, err
	}
	if out.ErrorCode != nil {
		return Result{}, errors.Join(ErrFailedToSend, fmt.Errorf("twilio error %d: %s", *out.ErrorCode, out.ErrorMessage))
	}

	t.logger.InfoContext(ctx, "sms sent",
		slog.String("to", msg.To),
		logger.MessageID(out.SID),
		slog.String("status", out.Status),
	)
	return Result{ID: out.SID, Status: out.Status}, nil
}

// Status fetches the current delivery status of a message by its SID.
func (t *Twilio) Status(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: message id is required", ErrInvalidMessage)
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages/%s.json", t.baseURL, url.PathEscape(t.sid), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Join(ErrFailedToSend, err)
	}
	var out twilioMessage
	if err := t.do(req, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (t *Twilio) do(req *http.Request, out any) error {
	req.SetBasicAuth(t.sid, t.token)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.StatusCode >= 300 {
		var te twilioError
		detail := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &te) == nil && te.Message != "" {
			detail = fmt.Sprintf("%d %s", te.Code, te.Message)
		}
		return classify(resp.StatusCode, detail)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Join(ErrFailedToSend, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
