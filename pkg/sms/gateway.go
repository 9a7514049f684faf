package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Gateway posts messages as JSON to a generic HTTP SMS gateway.
// The gateway is expected to answer 2xx with {"id": "...", "status": "..."}.
type Gateway struct {
	url      string
	username string
	password string
	from     string
	client   *http.Client
	logger   *slog.Logger
}

func NewGateway(cfg Config, opts ...Option) (*Gateway, error) {
	if err := cfg.validateGateway(); err != nil {
		return nil, err
	}
	o := buildOptions(cfg.Timeout, opts)
	return &Gateway{
		url:      cfg.GatewayURL,
		username: cfg.GatewayUsername,
		password: cfg.GatewayPassword,
		from:     cfg.GatewayFrom,
		client:   o.client,
		logger:   o.logger.With(logger.Component("sms.gateway")),
	}, nil
}

func (g *Gateway) SendSMS(ctx context.Context, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}
	if msg.From == "" {
		msg.From = g.from
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return Result{}, errors.Join(ErrFailedToSend, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, errors.Join(ErrFailedToSend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.username != "" {
		req.SetBasicAuth(g.username, g.password)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, errors.Join(ErrFailedToSend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, errors.Join(ErrFailedToSend, err)
	}
	if resp.StatusCode >= 300 {
		err := classify(resp.StatusCode, strings.TrimSpace(string(body)))
		g.logger.ErrorContext(ctx, "sms send failed", slog.String("to", msg.To), logger.Error(err))
		return Result{}, err
	}

	var res Result
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &res); err != nil {
			return Result{}, errors.Join(ErrFailedToSend, err)
		}
	}
	if res.Status == "" {
		res.Status = "accepted"
	}
	g.logger.InfoContext(ctx, "sms sent", slog.String("to", msg.To), logger.MessageID(res.ID))
	return res, nil
}
