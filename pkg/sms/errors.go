package sms

import "errors"

var (
	ErrInvalidConfig  = errors.New("sms.errors.invalid_config")
	ErrInvalidMessage = errors.New("sms.errors.invalid_message")
	ErrFailedToSend   = errors.New("sms.errors.failed_to_send")
	// ErrRejected marks provider responses that will fail the same way on
	// every retry, such as bad credentials or an unroutable number.
	ErrRejected          = errors.New("sms.errors.rejected_by_provider")
	ErrStatusUnsupported = errors.New("sms.errors.status_unsupported")
	ErrUnknownDriver     = errors.New("sms.errors.unknown_driver")
)
