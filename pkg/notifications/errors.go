package notifications

import "errors"

var (
	ErrNotFound       = errors.New("notifications.errors.not_found")
	ErrInvalidRecord  = errors.New("notifications.errors.invalid_record")
	ErrInvalidRequest = errors.New("notifications.errors.invalid_request")
	ErrStorage        = errors.New("notifications.errors.storage")
	ErrPublish        = errors.New("notifications.errors.publish_failed")
	ErrUnknownDriver  = errors.New("notifications.errors.unknown_store_driver")
)
