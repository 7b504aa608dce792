// Package metrics provides a Prometheus implementation of
// httpclient.MetricsRecorder for processes that expose a /metrics endpoint
// instead of exporting through OpenTelemetry.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultNamespace = "netcore"

// PrometheusRecorder holds the client's Prometheus collectors.
type PrometheusRecorder struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec
	RetriesTotal     prometheus.Counter
	TransferredBytes *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors under namespace (default
// "netcore") and registers them with reg. A nil reg registers with the
// default registry.
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_client_requests_total",
				Help:      "Completed HTTP client dispatches by method, status code and error kind",
			},
			[]string{"method", "status", "error_kind"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_client_request_duration_seconds",
				Help:      "HTTP client dispatch latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~41s
			},
			[]string{"method"},
		),
		RequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_client_requests_in_flight",
				Help:      "HTTP client dispatches currently in progress",
			},
			[]string{"method"},
		),
		RetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_client_retries_total",
				Help:      "Retries issued by retry policies",
			},
		),
		TransferredBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_client_transferred_bytes_total",
				Help:      "Bytes streamed by uploads and downloads",
			},
			[]string{"direction"},
		),
	}
}

// RecordRequest records a completed dispatch. A zero status code is
// reported as "none".
func (r *PrometheusRecorder) RecordRequest(_ context.Context, method string, statusCode int, errorKind string, elapsed time.Duration) {
	status := "none"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	r.RequestsTotal.WithLabelValues(method, status, errorKind).Inc()
	r.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) RecordInFlight(_ context.Context, method string, delta int64) {
	r.RequestsInFlight.WithLabelValues(method).Add(float64(delta))
}

func (r *PrometheusRecorder) RecordRetry(_ context.Context, _ int) {
	r.RetriesTotal.Inc()
}

// RecordTransfer adds streamed bytes; non-positive counts are ignored.
func (r *PrometheusRecorder) RecordTransfer(_ context.Context, direction string, bytes int64) {
	if bytes <= 0 {
		return
	}
	r.TransferredBytes.WithLabelValues(direction).Add(float64(bytes))
}
