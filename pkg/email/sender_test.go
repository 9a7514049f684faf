package email_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/notifykit/pkg/email"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  email.SendEmailParams
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid params",
			params: email.SendEmailParams{
				SendTo:   "user@example.com",
				Subject:  "Test Subject",
				BodyHTML: "<p>Test body</p>",
				Tag:      "test",
			},
			wantErr: false,
		},
		{
			name: "valid params without tag",
			params: email.SendEmailParams{
				SendTo:   "user@example.com",
				Subject:  "Test Subject",
				BodyHTML: "<p>Test body</p>",
			},
			wantErr: false,
		},
		{
			name: "empty SendTo",
			params: email.SendEmailParams{
				SendTo:   "",
				Subject:  "Test Subject",
				BodyHTML: "<p>Test body</p>",
			},
			wantErr: true,
			errMsg:  "SendTo is required",
		},
		{
			name: "whitespace only SendTo",
			params: email.SendEmailParams{
				SendTo:   "   ",
				Subject:  "Test Subject",
				BodyHTML: "<p>Test body</p>",
			},
			wantErr: true,
			errMsg:  "SendTo is required",
		},
		{
			name: "invalid email format",
			params: email.SendEmailParams{
				SendTo:   "invalid-email",
				Subject:  "Test Subject",
				BodyHTML: "<p>Test body</p>",
			},
			wantErr: true,
			errMsg:  "SendTo must be a valid email address",
		},
		{
			name: "invalid email missing domain",
			params: email.SendEmailParams{
				SendTo:   "user@",
				Subject:  "Test Subject",
				BodyHTML: "<p>Test body</p>",
			},
			wantErr: true,
			errMsg:  "SendTo must be a valid email address",
		},
		{
			name: "invalid email missing local part",
			params: email.SendEmailParams{
				SendTo:   "@example.com",
				Subject:  "Test Subject",
				BodyHTML: "<p>Test body</p>",
			},
			wantErr: true,
			errMsg:  "SendTo must be a valid email address",
		},
		{
			name: "empty Subject",
			params: email.SendEmailParams{
				SendTo:   "user@example.com",
				Subject:  "",
				BodyHTML: "<p>Test body</p>",
			},
			wantErr: true,
			errMsg:  "Subject is required",
		},
		{
			name: "whitespace only Subject",
			params: email.SendEmailParams{
				SendTo:   "user@example.com",
				Subject:  "   ",
				BodyHTML: "<p>Test body</p>",
			},
			wantErr: true,
			errMsg:  "Subject is required",
		},
		{
			name: "empty BodyHTML",
			params: email.SendEmailParams{
				SendTo:   "user@example.com",
				Subject:  "Test Subject",
				BodyHTML: "",
			},
			wantErr: true,
			errMsg:  "BodyHTML is required",
		},
		{
			name: "whitespace only BodyHTML",
			params: email.SendEmailParams{
				SendTo:   "user@example.com",
				Subject:  "Test Subject",
				BodyHTML: "   ",
			},
			wantErr: true,
			errMsg:  "BodyHTML is required",
		},
		{
			name: "complex valid email",
			params: email.SendEmailParams{
				SendTo:   "test.user+tag@sub.example.com",
				Subject:  "Test Subject",
				BodyHTML: "<p>Test body</p>",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, email.ErrInvalidParams)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMustNewPostmarkClient(t *testing.T) {
	t.Parallel()

	t.Run("valid config does not panic", func(t *testing.T) {
		t.Parallel()

		cfg := email.Config{
			PostmarkServerToken:  "test-server-token",
			PostmarkAccountToken: "test-account-token",
			SenderEmail:          "sender@example.com",
			SupportEmail:         "support@example.com",
		}

		assert.NotPanics(t, func() {
			client := email.MustNewPostmarkClient(cfg)
			assert.NotNil(t, client)
		})
	})

	t.Run("invalid config panics", func(t *testing.T) {
		t.Parallel()

		cfg := email.Config{
			// Missing required fields
			PostmarkServerToken: "test-token",
			// Missing other required fields
		}

		assert.Panics(t, func() {
			email.MustNewPostmarkClient(cfg)
		})
	})
}

func TestSendBulk(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	first := email.SendEmailParams{SendTo: "a@example.com", Subject: "A", BodyHTML: "<p>a</p>"}
	second := email.SendEmailParams{SendTo: "b@example.com", Subject: "B", BodyHTML: "<p>b</p>"}

	t.Run("sends every message", func(t *testing.T) {
		t.Parallel()

		sender := new(mockSender)
		sender.On("SendEmail", ctx, first).Return(nil).Once()
		sender.On("SendEmail", ctx, second).Return(nil).Once()

		assert.NoError(t, email.SendBulk(ctx, sender, first, second))
		sender.AssertExpectations(t)
	})

	t.Run("continues after a failure and joins errors", func(t *testing.T) {
		t.Parallel()

		sender := new(mockSender)
		sender.On("SendEmail", ctx, first).Return(email.ErrFailedToSendEmail).Once()
		sender.On("SendEmail", ctx, second).Return(nil).Once()

		err := email.SendBulk(ctx, sender, first, second)
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
		assert.Contains(t, err.Error(), "a@example.com")
		sender.AssertExpectations(t)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		t.Parallel()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		sender := new(mockSender)
		err := email.SendBulk(cctx, sender, first, second)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, sender.Calls)
	})
}
