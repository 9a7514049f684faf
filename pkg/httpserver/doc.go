// Package httpserver runs the notifyd HTTP surface.
//
// Server binds its listener inside Run, so listen errors come back
// synchronously wrapped with ErrStart, and shuts down gracefully when the
// context passed to Run is cancelled. Ready and Addr expose the bound address,
// which makes port 0 usable in tests.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// LivenessHandler and ReadinessHandler serve the /health checks. Readiness
// runs named dependency checks concurrently and answers 503 when any fails.
package httpserver
