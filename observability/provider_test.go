package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/gaborage/go-bricks-net/logger"
)

func shutdownQuietly(t *testing.T, p Provider) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(&Config{}, nil)
	require.NoError(t, err)

	_, ok := p.(*noopProvider)
	assert.True(t, ok, "expected noopProvider when disabled")
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderNilConfig(t *testing.T) {
	p, err := NewProvider(nil, nil)
	assert.ErrorIs(t, err, ErrNilConfig)
	assert.Nil(t, p)
}

func TestNewProviderInvalidConfig(t *testing.T) {
	p, err := NewProvider(&Config{Enabled: true}, logger.Nop())
	assert.ErrorIs(t, err, ErrMissingServiceName)
	assert.Nil(t, p)
}

func TestNewProviderStdout(t *testing.T) {
	cfg := &Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}}

	p, err := NewProvider(cfg, logger.Nop())
	require.NoError(t, err)
	shutdownQuietly(t, p)

	impl, ok := p.(*provider)
	require.True(t, ok)
	assert.NotNil(t, impl.tracerProvider)
	assert.NotNil(t, impl.meterProvider)
	assert.Same(t, impl.tracerProvider, otel.GetTracerProvider())

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")

	assert.Empty(t, cfg.Environment, "caller config is not defaulted in place")
	assert.NoError(t, p.ForceFlush(context.Background()))
}

func TestNewProviderSelectiveSignals(t *testing.T) {
	cfg := &Config{
		Enabled: true,
		Service: ServiceConfig{Name: testServiceName},
		Trace:   TraceConfig{Enabled: BoolPtr(false)},
	}

	p, err := NewProvider(cfg, logger.Nop())
	require.NoError(t, err)
	shutdownQuietly(t, p)

	impl := p.(*provider)
	assert.Nil(t, impl.tracerProvider)
	assert.NotNil(t, impl.meterProvider)

	_, ok := p.TracerProvider().(noop.TracerProvider)
	assert.True(t, ok, "disabled tracing falls back to a no-op tracer provider")
}

func TestNewProviderOTLPExporters(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		endpoint string
	}{
		{name: "http", protocol: ProtocolHTTP, endpoint: "http://localhost:4318"},
		{name: "grpc", protocol: ProtocolGRPC, endpoint: "localhost:4317"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Endpoint: tt.endpoint,
					Protocol: tt.protocol,
					Insecure: true,
					Headers:  map[string]string{"api-key": "secret"},
				},
				Metrics: MetricsConfig{
					Endpoint:    tt.endpoint,
					Temporality: TemporalityDelta,
					Compression: CompressionNone,
				},
			}

			p, err := NewProvider(cfg, logger.Nop())
			require.NoError(t, err)
			shutdownQuietly(t, p)
			assert.NotNil(t, p.(*provider).tracerProvider)
			assert.NotNil(t, p.(*provider).meterProvider)
		})
	}
}

func TestMustNewProviderPanicsOnInvalidConfig(t *testing.T) {
	assert.Panics(t, func() {
		MustNewProvider(&Config{Enabled: true}, nil)
	})
}

func TestProviderShutdownFlushesSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Hour)))
	p := &provider{tracerProvider: tp, log: logger.Nop()}

	_, span := tp.Tracer("test").Start(context.Background(), "HTTP GET")
	span.End()
	assert.Empty(t, exporter.GetSpans(), "batched span not exported yet")

	require.NoError(t, p.ForceFlush(context.Background()))
	assert.Len(t, exporter.GetSpans(), 1)

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestProviderEachReportsEveryFailure(t *testing.T) {
	p := &provider{
		tracerProvider: sdktrace.NewTracerProvider(),
		meterProvider:  sdkmetric.NewMeterProvider(),
		log:            logger.Nop(),
	}
	errTrace := errors.New("trace exporter down")
	errMeter := errors.New("meter exporter down")

	err := p.each(context.Background(), "flush",
		func(context.Context) error { return errTrace },
		func(context.Context) error { return errMeter },
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errTrace)
	assert.ErrorIs(t, err, errMeter)
	assert.Contains(t, err.Error(), "failed to flush trace provider")
	assert.Contains(t, err.Error(), "failed to flush meter provider")

	ok := p.each(context.Background(), "flush",
		func(context.Context) error { return nil },
		func(context.Context) error { return nil },
	)
	assert.NoError(t, ok)
}

func TestProviderAccessorsWithoutSDKProviders(t *testing.T) {
	p := &provider{}
	assert.NotNil(t, p.TracerProvider())
	assert.NotNil(t, p.MeterProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestTemporalitySelector(t *testing.T) {
	delta := temporalitySelector(TemporalityDelta)
	assert.Equal(t, metricdata.DeltaTemporality, delta(sdkmetric.InstrumentKindCounter))
	assert.Equal(t, metricdata.DeltaTemporality, delta(sdkmetric.InstrumentKindHistogram))
	assert.Equal(t, metricdata.CumulativeTemporality, delta(sdkmetric.InstrumentKindUpDownCounter))

	cumulative := temporalitySelector(TemporalityCumulative)
	assert.Equal(t, metricdata.CumulativeTemporality, cumulative(sdkmetric.InstrumentKindCounter))
}
