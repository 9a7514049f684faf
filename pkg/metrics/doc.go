// Package metrics exposes pipeline and HTTP metrics for Prometheus.
//
// Metrics is both a queue.Observer and a queue.PublishObserver, so the same
// value is passed to the publisher and the consumer. Collectors live on a
// private registry served by Handler.
package metrics
