package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOpts holds options for creating metrics
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
}

// Counter wraps an OTel counter for easier use
type Counter struct {
	counter metric.Int64Counter
}

func newCounter(meter metric.Meter, opts MetricOpts) (*Counter, error) {
	counter, err := meter.Int64Counter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Histogram wraps an OTel histogram for easier use
type Histogram struct {
	histogram metric.Float64Histogram
}

func newHistogram(meter metric.Meter, opts MetricOpts, boundaries ...float64) (*Histogram, error) {
	options := []metric.Float64HistogramOption{
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	}
	if len(boundaries) > 0 {
		options = append(options, metric.WithExplicitBucketBoundaries(boundaries...))
	}
	histogram, err := meter.Float64Histogram(opts.Name, options...)
	if err != nil {
		return nil, err
	}
	return &Histogram{histogram: histogram}, nil
}

// Record records a value in the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// UpDownCounter wraps an OTel up-down counter for values that can increase and decrease
type UpDownCounter struct {
	counter metric.Int64UpDownCounter
}

func newUpDownCounter(meter metric.Meter, opts MetricOpts) (*UpDownCounter, error) {
	counter, err := meter.Int64UpDownCounter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &UpDownCounter{counter: counter}, nil
}

// Inc increments the counter by 1
func (c *UpDownCounter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Dec decrements the counter by 1
func (c *UpDownCounter) Dec(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, -1, metric.WithAttributes(attrs...))
}

// CheckoutMetrics groups the instruments recorded by the purchase flow
type CheckoutMetrics struct {
	Transitions    *Counter
	BackendLatency *Histogram
	ActiveSessions *UpDownCounter
}

// NewCheckoutMetrics registers the checkout instruments on meter (global meter when nil)
func NewCheckoutMetrics(meter metric.Meter) (*CheckoutMetrics, error) {
	if meter == nil {
		meter = GetMeter()
	}

	transitions, err := newCounter(meter, MetricOpts{
		Name:        "checkout_transitions_total",
		Description: "Checkout step transitions",
		Unit:        "{transition}",
	})
	if err != nil {
		return nil, err
	}

	latency, err := newHistogram(meter, MetricOpts{
		Name:        "checkout_backend_request_duration_seconds",
		Description: "Latency of calls to the ticketing backend",
		Unit:        "s",
	}, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)
	if err != nil {
		return nil, err
	}

	sessions, err := newUpDownCounter(meter, MetricOpts{
		Name:        "checkout_active_sessions",
		Description: "Purchase sessions currently held in memory",
		Unit:        "{session}",
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutMetrics{
		Transitions:    transitions,
		BackendLatency: latency,
		ActiveSessions: sessions,
	}, nil
}

// ObserveBackend records the duration of one backend operation
func (m *CheckoutMetrics) ObserveBackend(ctx context.Context, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BackendLatency.Record(ctx, time.Since(start).Seconds(), OperationAttr(operation), outcomeAttr(outcome))
}

// Common attribute keys
const (
	AttrSessionID   = "checkout.session_id"
	AttrEventID     = "checkout.event_id"
	AttrEventMode   = "checkout.event_mode"
	AttrStepFrom    = "checkout.step.from"
	AttrStepTo      = "checkout.step.to"
	AttrOperation   = "backend.operation"
	AttrOutcome     = "outcome"
	AttrErrorCode   = "error.code"
	AttrCartLines   = "checkout.cart_lines"
	AttrReservation = "checkout.reservation_id"
)

func SessionIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

func EventIDAttr(id int) attribute.KeyValue {
	return attribute.Int(AttrEventID, id)
}

func EventModeAttr(mode string) attribute.KeyValue {
	return attribute.String(AttrEventMode, mode)
}

func StepAttrs(from, to string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStepFrom, from),
		attribute.String(AttrStepTo, to),
	}
}

func OperationAttr(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

func ErrorCodeAttr(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

func CartLinesAttr(n int) attribute.KeyValue {
	return attribute.Int(AttrCartLines, n)
}

func ReservationAttr(id int) attribute.KeyValue {
	return attribute.Int(AttrReservation, id)
}
