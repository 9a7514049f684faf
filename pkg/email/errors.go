package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("email.errors.failed_to_send_email")
	ErrInvalidConfig     = errors.New("email.errors.invalid_config")
	ErrInvalidParams     = errors.New("email.errors.invalid_params")
	// ErrRejected marks provider responses that will fail the same way on every retry,
	// such as a bad server token or an inactive recipient.
	ErrRejected      = errors.New("email.errors.rejected_by_provider")
	ErrUnknownDriver = errors.New("email.errors.unknown_driver")
)
