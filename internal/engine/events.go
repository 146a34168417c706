package engine

import "github.com/capgrid/captrack/internal/track"

// Event is delivered to engine subscribers. Concrete types: FrameEvent,
// PoseEvent, StatsEvent, BiasEvent, CountsEvent, StatusEvent.
type Event interface {
	isEvent()
}

// FrameEvent carries one conditioned frame.
type FrameEvent struct {
	TNanos     int64
	X          []float64
	ModelValid bool
	ModelOut   float64
}

// PoseEvent carries one tracker output.
type PoseEvent struct {
	TNanos    int64
	TrackerID string
	Output    track.Output
}

// StatsEvent is operational telemetry about the live stream, emitted at most
// every 200 ms.
type StatsEvent struct {
	TotalSamples      uint64
	ElapsedSec        float64
	LastSecondSamples int
	LastDtSec         float64
}

// BiasEvent reports a bias-state transition.
type BiasEvent struct {
	HasBias   bool
	Capturing bool
}

// CountsEvent reports accepted/rejected frame counters, throttled to every
// 500 ms.
type CountsEvent struct {
	OK  uint64
	Bad uint64
}

// StatusEvent is a human-readable status line for the host.
type StatusEvent struct {
	Text string
}

func (FrameEvent) isEvent()  {}
func (PoseEvent) isEvent()   {}
func (StatsEvent) isEvent()  {}
func (BiasEvent) isEvent()   {}
func (CountsEvent) isEvent() {}
func (StatusEvent) isEvent() {}
