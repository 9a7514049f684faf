package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifykit/pkg/clientip"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/requestid"
)

// Notifier is the intake side of the notifications service.
type Notifier interface {
	Send(ctx context.Context, req notifications.Request) (*notifications.Record, error)
	List(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Record, error)
	Get(ctx context.Context, id string) (*notifications.Record, error)
}

// Instrumenter wraps handlers with request metrics and exposes the registry.
type Instrumenter interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Deps are the collaborators of the router. Notifier is required; a nil
// Realtime or Metrics leaves the matching route unmounted.
type Deps struct {
	Notifier     Notifier
	Realtime     http.Handler
	Metrics      Instrumenter
	Checks       map[string]httpserver.Check
	CheckTimeout time.Duration
	ClientIP     *clientip.Resolver
	Logger       *slog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	if d.Notifier == nil {
		panic("api: notifier is required")
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	if d.CheckTimeout <= 0 {
		d.CheckTimeout = 2 * time.Second
	}
	if d.ClientIP == nil {
		d.ClientIP = clientip.New(nil)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(d.ClientIP.Middleware)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	h := &handlers{notifier: d.Notifier, log: log}
	r.Post("/notifications", h.create())
	r.Get("/notifications/{id}", h.get())
	r.Get("/users/{id}/notifications", h.list())

	if d.Realtime != nil {
		r.Handle("/ws", d.Realtime)
	}

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, d.CheckTimeout, d.Checks))

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	return r
}
