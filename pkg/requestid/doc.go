// Package requestid correlates log records of one HTTP request.
//
// Middleware takes the X-Request-ID header when it is well formed and
// otherwise generates a UUID. The id is echoed back to the caller and is
// available through FromContext. LoggerExtractor plugs into
// logger.WithContextExtractors so every record logged with the request
// context carries it.
package requestid
