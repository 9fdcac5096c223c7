// Package shared provides instrumentation shared by application services.
package shared

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/archon-research/stl-lend/internal/ports/outbound"
)

// Compile-time assertion that AppTelemetry implements MetricsRecorder.
var _ outbound.MetricsRecorder = (*AppTelemetry)(nil)

const instrumentationName = "github.com/archon-research/stl-lend/internal/services"

// AppTelemetry records action build outcomes with OpenTelemetry.
type AppTelemetry struct {
	actionsBuilt       metric.Int64Counter
	buildDuration      metric.Float64Histogram
	simulationFailures metric.Int64Counter
}

// NewAppTelemetry uses the global meter provider.
func NewAppTelemetry() (*AppTelemetry, error) {
	return NewAppTelemetryWithProvider(otel.GetMeterProvider())
}

// NewAppTelemetryWithProvider creates an AppTelemetry on a custom meter provider.
func NewAppTelemetryWithProvider(mp metric.MeterProvider) (*AppTelemetry, error) {
	meter := mp.Meter(instrumentationName)
	t := &AppTelemetry{}

	var err error
	t.actionsBuilt, err = meter.Int64Counter(
		"actions.built.total",
		metric.WithDescription("Total number of action builds by action and status"),
	)
	if err != nil {
		return nil, err
	}

	t.buildDuration, err = meter.Float64Histogram(
		"actions.build.duration",
		metric.WithDescription("Time taken to build an action, including chain reads"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	t.simulationFailures, err = meter.Int64Counter(
		"actions.simulation_failures.total",
		metric.WithDescription("Total number of builds rejected by the simulation"),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// RecordActionBuilt records one finished build.
func (t *AppTelemetry) RecordActionBuilt(ctx context.Context, action, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	)
	t.actionsBuilt.Add(ctx, 1, attrs)
	t.buildDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSimulationFailure records a build rejected with a simulation error of kind.
func (t *AppTelemetry) RecordSimulationFailure(ctx context.Context, action, kind string) {
	t.simulationFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("kind", kind),
	))
}
