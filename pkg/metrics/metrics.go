package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Metrics owns a private registry with the pipeline and HTTP collectors.
// It observes the publisher and the consumer and serves /metrics.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	published    *prometheus.CounterVec
	dispatched   *prometheus.CounterVec
	dispatchTime *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var (
	_ queue.Observer        = (*Metrics)(nil)
	_ queue.PublishObserver = (*Metrics)(nil)
)

// Option configures Metrics.
type Option func(*options)

type options struct {
	namespace       string
	runtime         bool
	durationBuckets []float64
}

// WithNamespace prefixes every metric name. Defaults to "notifykit".
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithoutRuntimeCollectors skips the Go and process collectors.
func WithoutRuntimeCollectors() Option {
	return func(o *options) { o.runtime = false }
}

// WithDurationBuckets overrides histogram buckets for dispatch durations.
func WithDurationBuckets(b []float64) Option {
	return func(o *options) {
		if len(b) > 0 {
			o.durationBuckets = b
		}
	}
}

func New(opts ...Option) *Metrics {
	o := &options{
		namespace:       "notifykit",
		runtime:         true,
		durationBuckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}
	for _, opt := range opts {
		opt(o)
	}

	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		namespace: o.namespace,
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "published_total",
			Help:      "Envelopes published to the primary lane.",
		}, []string{"type", "result"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "dispatch_total",
			Help:      "Processed deliveries by outcome.",
		}, []string{"type", "outcome"}),
		dispatchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in the channel handler per delivery.",
			Buckets:   o.durationBuckets,
		}, []string{"type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
	}

	m.registry.MustRegister(m.published, m.dispatched, m.dispatchTime, m.httpRequests, m.httpDuration)
	if o.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry exposes the underlying registry for extra collectors and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnPublish implements queue.PublishObserver.
func (m *Metrics) OnPublish(_ context.Context, t queue.NotificationType, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.published.WithLabelValues(t.String(), result).Inc()
}

// OnOutcome implements queue.Observer.
func (m *Metrics) OnOutcome(_ context.Context, ev queue.Event) {
	t := ev.Envelope.Type.String()
	if t == "" {
		t = "unknown"
	}
	m.dispatched.WithLabelValues(t, string(ev.Outcome)).Inc()
	if ev.Duration > 0 {
		m.dispatchTime.WithLabelValues(t).Observe(ev.Duration.Seconds())
	}
}

// GaugeFunc registers a gauge sampled from fn at scrape time, such as open
// websocket connections.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) error {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	}, fn)
	if err := m.registry.Register(g); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())
		m.httpRequests.WithLabelValues(path, r.Method, status).Inc()
		m.httpDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
