package tmd2771

import (
	"context"
)

// PollBehaviorFunc produces a reading or an error for MockSensor.
type PollBehaviorFunc func(ctx context.Context) (Reading, error)

// MockSensor is a Sensor that needs no hardware; every Poll delegates to the
// behavior function.
//
// Example usage:
//
//	sensor := NewMockSensor(func(ctx context.Context) (Reading, error) {
//		return Reading{AmbientLux: 120.5, Proximity: 42}, nil
//	})
type MockSensor struct {
	behavior PollBehaviorFunc
}

func NewMockSensor(behavior PollBehaviorFunc) *MockSensor {
	return &MockSensor{behavior: behavior}
}

func (m *MockSensor) Poll(ctx context.Context) (Reading, error) {
	return m.behavior(ctx)
}

// ReadingFromCounts builds the reading the driver would decode from the given
// raw channel counts.
func ReadingFromCounts(c0, c1, prox uint16) Reading {
	return Reading{AmbientLux: Luminance(c0, c1), Proximity: prox, C0: c0, C1: c1}
}
