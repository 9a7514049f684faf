package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

const maxSlugLength = 60

// DevSender stores each email in dir instead of delivering it: the body as
// <name>.html and the envelope as <name>.json, so local runs can be
// inspected in a browser.
type DevSender struct {
	dir    string
	logger *slog.Logger
	seq    atomic.Uint64
}

// NewDevSender creates a DevSender writing to dir, which is created on the
// first send.
func NewDevSender(dir string, log *slog.Logger) Sender {
	if log == nil {
		log = logger.Discard()
	}
	return &DevSender{dir: dir, logger: log.With(logger.Component("email.dev"))}
}

type devRecord struct {
	ReceivedAt time.Time `json:"received_at"`
	SendTo     string    `json:"send_to"`
	Subject    string    `json:"subject"`
	Tag        string    `json:"tag,omitempty"`
	BodyFile   string    `json:"body_file"`
}

func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		return fmt.Errorf("%w: create directory: %v", ErrFailedToSendEmail, err)
	}

	now := time.Now().UTC()
	label := params.Tag
	if label == "" {
		label = params.Subject
	}
	// The sequence keeps names unique when several emails share a second.
	name := fmt.Sprintf("%s-%04d-%s", now.Format("20060102T150405"), d.seq.Add(1), slug(label))

	body := name + ".html"
	if err := os.WriteFile(filepath.Join(d.dir, body), []byte(params.BodyHTML), 0o600); err != nil {
		return fmt.Errorf("%w: write body: %v", ErrFailedToSendEmail, err)
	}

	meta, err := json.MarshalIndent(devRecord{
		ReceivedAt: now,
		SendTo:     params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		BodyFile:   body,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode envelope: %v", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, name+".json"), meta, 0o600); err != nil {
		return fmt.Errorf("%w: write envelope: %v", ErrFailedToSendEmail, err)
	}

	d.logger.DebugContext(ctx, "email stored",
		slog.String("file", body),
		slog.String("subject", params.Subject))
	return nil
}

// slug lowercases s and collapses every run of characters other than ASCII
// letters and digits into one dash.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > maxSlugLength {
		out = strings.TrimSuffix(out[:maxSlugLength], "-")
	}
	if out == "" {
		return "email"
	}
	return out
}
