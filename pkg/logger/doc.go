// Package logger builds *slog.Logger values with consistent attribute names
// for notifykit services.
//
// New takes functional options; FromConfig turns the APP_ENV, APP_NAME,
// LOG_LEVEL and LOG_FORMAT settings into options with per-environment
// defaults (text at debug level in development, JSON at info elsewhere).
//
//	log := logger.New(append(logger.FromConfig(cfg),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)...)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "delivery retried",
//		logger.NotificationID(id),
//		logger.Attempt(2),
//		logger.Lane("notifications_retry"),
//	)
//
// Context extractors run on every record, so values stored in a request
// context show up in all records logged with that context. Attribute helpers
// such as Error and MessageID return an empty Attr for nil input, which slog
// drops, so callers need no nil checks.
package logger
