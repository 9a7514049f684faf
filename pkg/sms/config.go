package sms

import (
	"fmt"
	"strings"
	"time"
)

// Supported drivers.
const (
	DriverTwilio  = "twilio"
	DriverGateway = "gateway"
	DriverDev     = "dev"
)

// Config holds SMS provider settings. Only the fields of the selected
// driver are checked.
type Config struct {
	Driver          string        `env:"SMS_DRIVER" envDefault:"dev"`
	TwilioSID       string        `env:"TWILIO_SID"`
	TwilioAuthToken string        `env:"TWILIO_AUTH_TOKEN"`
	TwilioFrom      string        `env:"TWILIO_PHONE_NUMBER"`
	GatewayURL      string        `env:"SMS_GATEWAY_URL"`
	GatewayUsername string        `env:"SMS_GATEWAY_USERNAME"`
	GatewayPassword string        `env:"SMS_GATEWAY_PASSWORD"`
	GatewayFrom     string        `env:"SMS_GATEWAY_FROM"`
	Timeout         time.Duration `env:"SMS_TIMEOUT" envDefault:"10s"`
}

func (c Config) validateTwilio() error {
	if !strings.HasPrefix(c.TwilioSID, "AC") {
		return fmt.Errorf("%w: TwilioSID must start with \"AC\"", ErrInvalidConfig)
	}
	if c.TwilioAuthToken == "" {
		return fmt.Errorf("%w: TwilioAuthToken is required", ErrInvalidConfig)
	}
	if c.TwilioFrom == "" {
		return fmt.Errorf("%w: TwilioFrom is required", ErrInvalidConfig)
	}
	return nil
}

func (c Config) validateGateway() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("%w: GatewayURL is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.GatewayURL, "http://") && !strings.HasPrefix(c.GatewayURL, "https://") {
		return fmt.Errorf("%w: GatewayURL must be an http(s) URL", ErrInvalidConfig)
	}
	return nil
}
