package email

import "fmt"

// Supported drivers.
const (
	DriverPostmark = "postmark"
	DriverSMTP     = "smtp"
	DriverDev      = "dev"
)

// Config holds email service configuration.
// Postmark tokens and SMTP credentials are only checked for the selected
// driver, so development setups can run with the dev driver alone.
// SenderEmail and SupportEmail establish the sender identity and reply-to
// behavior for all outbound emails.
type Config struct {
	Driver               string `env:"EMAIL_DRIVER" envDefault:"dev"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@localhost.dev"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@localhost.dev"`
	SMTPHost             string `env:"SMTP_HOST"`
	SMTPPort             int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername         string `env:"SMTP_USERNAME"`
	SMTPPassword         string `env:"SMTP_PASSWORD"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

func (c Config) validateIdentity() error {
	if c.SenderEmail == "" {
		return fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(c.SenderEmail) {
		return fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if c.SupportEmail == "" {
		return fmt.Errorf("%w: SupportEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(c.SupportEmail) {
		return fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}
	return nil
}
