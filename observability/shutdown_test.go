package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type mockProvider struct {
	shutdownErr    error
	shutdownCalled bool
	deadline       time.Time
}

func (m *mockProvider) TracerProvider() trace.TracerProvider { return noop.NewTracerProvider() }

func (m *mockProvider) MeterProvider() metric.MeterProvider { return metricnoop.NewMeterProvider() }

func (m *mockProvider) Shutdown(ctx context.Context) error {
	m.shutdownCalled = true
	m.deadline, _ = ctx.Deadline()
	return m.shutdownErr
}

func (m *mockProvider) ForceFlush(_ context.Context) error { return nil }

func TestShutdown(t *testing.T) {
	mock := &mockProvider{}
	start := time.Now()

	assert.NoError(t, Shutdown(mock, 0))
	assert.True(t, mock.shutdownCalled)
	assert.WithinDuration(t, start.Add(DefaultShutdownTimeout), mock.deadline, time.Second)
}

func TestShutdownNilProvider(t *testing.T) {
	assert.NoError(t, Shutdown(nil, time.Second))
}

func TestShutdownError(t *testing.T) {
	boom := errors.New("exporter unreachable")
	err := Shutdown(&mockProvider{shutdownErr: boom}, time.Second)

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "observability shutdown failed")
}

func TestMustShutdown(t *testing.T) {
	assert.NotPanics(t, func() { MustShutdown(&mockProvider{}, time.Second) })
	assert.Panics(t, func() { MustShutdown(&mockProvider{shutdownErr: errors.New("x")}, time.Second) })
}

func TestNoopProvider(t *testing.T) {
	p := newNoopProvider()

	_, ok := p.TracerProvider().(noop.TracerProvider)
	assert.True(t, ok)
	assert.NotNil(t, p.MeterProvider().Meter("test"))
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, p.ForceFlush(context.Background()))
}
