// Package metrics holds the Prometheus collectors fm exports on /metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	Uploads   prometheus.Counter
	Downloads prometheus.Counter

	BackendOps      *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		Uploads: f.NewCounter(prometheus.CounterOpts{
			Name: "file_uploads_total",
			Help: "Total number of file uploads",
		}),
		Downloads: f.NewCounter(prometheus.CounterOpts{
			Name: "file_downloads_total",
			Help: "Total number of file downloads",
		}),
		BackendOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_operations_total",
				Help: "File operations dispatched to host backends",
			},
			[]string{"backend", "op", "result"},
		),
		BackendDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_operation_duration_seconds",
				Help:    "Backend file operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "op"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) IncUploads() {
	if m != nil {
		m.Uploads.Inc()
	}
}

func (m *Metrics) IncDownloads() {
	if m != nil {
		m.Downloads.Inc()
	}
}

// ObserveBackend records one backend call and its outcome.
func (m *Metrics) ObserveBackend(backend, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.BackendOps.WithLabelValues(backend, op, result(err)).Inc()
	m.BackendDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
