package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/archon-research/stl-lend/internal/ports/outbound"
)

var _ outbound.MetricsRecorder = (*MockMetricsRecorder)(nil)

// BuiltAction is one RecordActionBuilt call.
type BuiltAction struct {
	Action string
	Status string
}

// SimulationFailure is one RecordSimulationFailure call.
type SimulationFailure struct {
	Action string
	Kind   string
}

// MockMetricsRecorder records metric calls for assertions.
type MockMetricsRecorder struct {
	mu       sync.Mutex
	Built    []BuiltAction
	Failures []SimulationFailure
}

func (m *MockMetricsRecorder) RecordActionBuilt(_ context.Context, action, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Built = append(m.Built, BuiltAction{Action: action, Status: status})
}

func (m *MockMetricsRecorder) RecordSimulationFailure(_ context.Context, action, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures = append(m.Failures, SimulationFailure{Action: action, Kind: kind})
}
