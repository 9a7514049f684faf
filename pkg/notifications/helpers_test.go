package notifications_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/sms"
)

type published struct {
	Type queue.NotificationType
	Data map[string]any
}

// recordingPublisher remembers every publish and returns err.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, t queue.NotificationType, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{Type: t, Data: data})
	return nil
}

func (p *recordingPublisher) Published() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type mockEmailSender struct{ mock.Mock }

func (m *mockEmailSender) SendEmail(ctx context.Context, p email.SendEmailParams) error {
	return m.Called(ctx, p).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, msg sms.Message) (sms.Result, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(sms.Result), args.Error(1)
}

type mockPusher struct{ mock.Mock }

func (m *mockPusher) BroadcastToUser(ctx context.Context, userID string, data any) error {
	return m.Called(ctx, userID, data).Error(0)
}
