package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	tel, err := Init(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.NotNil(t, GetMeter())

	tel, err = Init(ctx, &Config{Enabled: false, ServiceName: "checkout-test"})
	require.NoError(t, err)
	assert.Same(t, tel, current())

	assert.NoError(t, Shutdown(ctx))
}

func TestStartSpan_Disabled(t *testing.T) {
	_, err := Init(context.Background(), &Config{ServiceName: "checkout-test"})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "checkout.proceed")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().HasTraceID(), "no-op tracer must not produce trace ids")

	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
}

func TestInit_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := &Config{
		Enabled:        true,
		ServiceName:    "checkout-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		CollectorAddr:  "localhost:4317",
	}
	tel, err := Init(ctx, cfg)
	require.NoError(t, err)
	assert.NotNil(t, tel.tracerProvider)
	assert.NotNil(t, tel.meterProvider)
	assert.Equal(t, 15*time.Second, cfg.MetricInterval)
	assert.Equal(t, 1.0, cfg.SampleRatio)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	_ = Shutdown(shutdownCtx)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestCheckoutMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewCheckoutMetrics(provider.Meter("checkout-test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.Transitions.Inc(ctx, StepAttrs("select", "processing")...)
	m.Transitions.Inc(ctx, StepAttrs("processing", "confirm")...)
	m.ActiveSessions.Inc(ctx)
	m.ActiveSessions.Inc(ctx)
	m.ActiveSessions.Dec(ctx)
	m.ObserveBackend(ctx, "create_hold", time.Now().Add(-50*time.Millisecond), nil)

	metrics := collect(t, reader)

	transitions, ok := metrics["checkout_transitions_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range transitions.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	sessions, ok := metrics["checkout_active_sessions"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sessions.DataPoints, 1)
	assert.Equal(t, int64(1), sessions.DataPoints[0].Value)

	latency, ok := metrics["checkout_backend_request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, latency.DataPoints, 1)
	assert.Equal(t, uint64(1), latency.DataPoints[0].Count)
}

func TestCheckoutMetrics_NilSafeObserve(t *testing.T) {
	var m *CheckoutMetrics
	m.ObserveBackend(context.Background(), "create_hold", time.Now(), errors.New("x"))
}
