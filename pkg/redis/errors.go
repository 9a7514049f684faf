package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("redis.errors.invalid_url")
	ErrRedisNotReady                = errors.New("redis.errors.not_ready")
	ErrEmptyConnectionURL           = errors.New("redis.errors.empty_url")
	ErrHealthcheckFailed            = errors.New("redis.errors.healthcheck_failed")
)
