package tracking

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
)

const (
	// Meter name for HTTP client metrics instrumentation
	clientMeterName = "go-bricks-net/httpclient"

	// Metric names following OpenTelemetry HTTP client semantic conventions
	metricRequestDuration = "http.client.request.duration" // Histogram in seconds
	metricActiveRequests  = "http.client.active_requests"  // UpDownCounter

	// Client-specific metrics
	metricRetries     = "http.client.retries"           // Counter
	metricTransferred = "http.client.transferred_bytes" // Counter

	attrErrorType         = "error.type"
	attrTransferDirection = "transfer.direction"
	attrRetryAttempt      = "retry.attempt"
)

// Recorder records HTTP client metrics through an OpenTelemetry meter.
// Instruments that fail to initialise are skipped, never fatal.
type Recorder struct {
	duration    metric.Float64Histogram
	inFlight    metric.Int64UpDownCounter
	retries     metric.Int64Counter
	transferred metric.Int64Counter
}

// logMetricError logs a metric initialization error to stderr.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize HTTP client metric %s: %v\n", metricName, err)
	}
}

// NewRecorder creates a Recorder from mp, or from the global meter provider when mp is nil.
func NewRecorder(mp metric.MeterProvider) *Recorder {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(clientMeterName)
	r := &Recorder{}

	var err error
	r.duration, err = meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of HTTP client requests"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	r.inFlight, err = meter.Int64UpDownCounter(
		metricActiveRequests,
		metric.WithDescription("Number of outbound HTTP requests that are currently active"),
		metric.WithUnit("{request}"),
	)
	logMetricError(metricActiveRequests, err)

	r.retries, err = meter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of retries issued by the retry decorator"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)

	r.transferred, err = meter.Int64Counter(
		metricTransferred,
		metric.WithDescription("Bytes moved by instrumented uploads and downloads"),
		metric.WithUnit("By"),
	)
	logMetricError(metricTransferred, err)

	return r
}

// RecordRequest records the duration of a settled request. statusCode is 0
// when no response was received; errorKind is empty on success.
func (r *Recorder) RecordRequest(ctx context.Context, method string, statusCode int, errorKind string, elapsed time.Duration) {
	if r.duration == nil {
		return
	}
	attrs := []attribute.KeyValue{semconv.HTTPRequestMethodKey.String(method)}
	if statusCode > 0 {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(statusCode))
	}
	if errorKind != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errorKind))
	}
	r.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordInFlight adjusts the active request gauge by delta.
func (r *Recorder) RecordInFlight(ctx context.Context, method string, delta int64) {
	if r.inFlight == nil {
		return
	}
	r.inFlight.Add(ctx, delta, metric.WithAttributes(semconv.HTTPRequestMethodKey.String(method)))
}

// RecordRetry counts one retry; attempt is the 1-based retry number.
func (r *Recorder) RecordRetry(ctx context.Context, attempt int) {
	if r.retries == nil {
		return
	}
	r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(attrRetryAttempt, strconv.Itoa(attempt))))
}

// RecordTransfer adds bytes moved in the given direction ("upload" or "download").
func (r *Recorder) RecordTransfer(ctx context.Context, direction string, bytes int64) {
	if r.transferred == nil || bytes <= 0 {
		return
	}
	r.transferred.Add(ctx, bytes, metric.WithAttributes(attribute.String(attrTransferDirection, direction)))
}
