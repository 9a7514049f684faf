// Package clientip resolves the caller address of HTTP requests behind
// reverse proxies and stores it in the request context so log records can
// carry it.
//
//	res := clientip.New([]string{"X-Forwarded-For"})
//	r.Use(res.Middleware)
//	log := logger.New(logger.WithContextExtractors(clientip.LoggerExtractor()))
//
// Headers are only as trustworthy as the proxy that sets them. Deployments
// reached directly should pass an empty list so RemoteAddr is used.
package clientip
