package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/zeusync/carview/internal/core/observability/metrics"

// Recorder holds the simulation instruments. It uses the global OTel meter
// provider, which is a no-op until an SDK is installed.
type Recorder struct {
	ticks        metric.Int64Counter
	resets       metric.Int64Counter
	framesSent   metric.Int64Counter
	events       metric.Int64Counter
	eventErrors  metric.Int64Counter
	sessions     metric.Int64UpDownCounter
	tickDuration metric.Float64Histogram
}

func New() (*Recorder, error) {
	return NewWithMeter(otel.Meter(instrumentationName))
}

// Nop returns a Recorder backed by the no-op meter.
func Nop() *Recorder {
	r, err := NewWithMeter(noop.NewMeterProvider().Meter(instrumentationName))
	if err != nil {
		panic(err)
	}
	return r
}

func NewWithMeter(m metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	if r.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Session ticks executed"),
	); err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	if r.resets, err = m.Int64Counter(
		"sim.vehicle.resets",
		metric.WithDescription("Vehicles returned to the origin after leaving the bounds"),
	); err != nil {
		return nil, fmt.Errorf("creating resets counter: %w", err)
	}

	if r.framesSent, err = m.Int64Counter(
		"server.frames.sent",
		metric.WithDescription("Frames written to clients"),
	); err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}

	if r.events, err = m.Int64Counter(
		"bus.events.delivered",
		metric.WithDescription("Bus events delivered to handlers"),
	); err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}

	if r.eventErrors, err = m.Int64Counter(
		"bus.events.errors",
		metric.WithDescription("Bus deliveries where a handler failed"),
	); err != nil {
		return nil, fmt.Errorf("creating event errors counter: %w", err)
	}

	if r.sessions, err = m.Int64UpDownCounter(
		"server.sessions.active",
		metric.WithDescription("Sessions currently running"),
	); err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}

	if r.tickDuration, err = m.Float64Histogram(
		"sim.tick.duration",
		metric.WithDescription("Wall time spent inside one tick"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("creating tick histogram: %w", err)
	}

	return r, nil
}

func (r *Recorder) Tick(ctx context.Context, elapsed time.Duration) {
	r.ticks.Add(ctx, 1)
	r.tickDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond))
}

func (r *Recorder) Reset(ctx context.Context) {
	r.resets.Add(ctx, 1)
}

func (r *Recorder) FrameSent(ctx context.Context, transport string) {
	r.framesSent.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

func (r *Recorder) SessionOpened(ctx context.Context) {
	r.sessions.Add(ctx, 1)
}

func (r *Recorder) SessionClosed(ctx context.Context) {
	r.sessions.Add(ctx, -1)
}

// OnDelivered lets a Recorder observe an event bus.
func (r *Recorder) OnDelivered(eventType string, handlers int, err error, _ time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("event", eventType))
	r.events.Add(ctx, int64(handlers), attrs)
	if err != nil {
		r.eventErrors.Add(ctx, 1, attrs)
	}
}
