package realtime

import "errors"

var (
	ErrHubClosed    = errors.New("realtime.errors.hub_closed")
	ErrUserRequired = errors.New("realtime.errors.user_id_required")
	ErrEncodeFrame  = errors.New("realtime.errors.encode_frame")
	ErrUnknownEvent = errors.New("realtime.errors.unknown_event")
	ErrAlreadyBound = errors.New("realtime.errors.already_bound")
)
