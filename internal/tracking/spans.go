// Package tracking instruments HTTP client dispatches with OpenTelemetry
// spans and metrics.
package tracking

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	clientTracerName  = "go-bricks-net/httpclient"
	attrCorrelationID = "http.request.correlation_id"
)

// Tracer starts one client span per HTTP dispatch and injects the trace
// context into outgoing headers.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracer creates a Tracer from tp, or from the global tracer provider when tp is nil.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer:     tp.Tracer(clientTracerName),
		propagator: otel.GetTextMapPropagator(),
	}
}

// Start opens a span named "HTTP <METHOD>" for a request to target.
func (t *Tracer) Start(ctx context.Context, method string, target *url.URL, correlationID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		semconv.URLFull(target.Redacted()),
		semconv.ServerAddress(target.Hostname()),
		attribute.String(attrCorrelationID, correlationID),
	}
	if port := target.Port(); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			attrs = append(attrs, semconv.ServerPort(p))
		}
	}

	return t.tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// Inject writes the span context of ctx into h using the global propagator.
func (t *Tracer) Inject(ctx context.Context, h http.Header) {
	t.propagator.Inject(ctx, propagation.HeaderCarrier(h))
}

// EndSpan records the outcome on span and ends it. statusCode is 0 when no
// response was received. errorKind classifies err for the error.type attribute.
func EndSpan(span trace.Span, statusCode int, errorKind string, err error) {
	if statusCode > 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(statusCode))
	}
	if err != nil {
		if errorKind != "" {
			span.SetAttributes(attribute.String(attrErrorType, errorKind))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
