package migration

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/thebtf/wishare/internal/migration"

type metrics struct {
	applied  metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics(meter metric.Meter) *metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &metrics{}

	applied, err := meter.Int64Counter("wishare.migration.scripts_applied",
		metric.WithDescription("Migration scripts applied and recorded"),
		metric.WithUnit("{script}"))
	if err != nil {
		otel.Handle(err)
		applied = noop.Int64Counter{}
	}
	m.applied = applied

	duration, err := meter.Float64Histogram("wishare.migration.script_duration_ms",
		metric.WithDescription("Time spent applying one migration script"),
		metric.WithUnit("ms"))
	if err != nil {
		otel.Handle(err)
		duration = noop.Float64Histogram{}
	}
	m.duration = duration

	return m
}

func (m *metrics) scriptApplied(ctx context.Context, s Script, took time.Duration) {
	attrs := metric.WithAttributes(
		attribute.Int("version", s.Version),
		attribute.String("file_name", s.Name),
	)
	m.applied.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(took.Microseconds())/1000, attrs)
}
