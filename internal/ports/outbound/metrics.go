package outbound

import (
	"context"
	"time"
)

// MetricsRecorder records action build outcomes without tying services to a
// telemetry implementation.
type MetricsRecorder interface {
	// RecordActionBuilt records a finished build. status is "success" or "error".
	RecordActionBuilt(ctx context.Context, action, status string, duration time.Duration)

	// RecordSimulationFailure records a build that failed while simulating.
	RecordSimulationFailure(ctx context.Context, action, kind string)
}
