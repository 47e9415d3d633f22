package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for long-lived device tasks.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Controller defines the logic executed once per loop tick.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// TimeSource provides the time for controlling logic.
type TimeSource interface {
	Time() time.Time
}

// ControlContext provides the context of current tick.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// Tick is the sequence number of the current tick, starting from 1.
	Tick() uint64
	// PriorityLevel gets the current priority level.
	PriorityLevel() int
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefine priority levels
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvSense is the alias of priority level for sensors.
	PrLvSense = PrLvHigh
	// PrLvControl is the alias of priority level for controllers.
	PrLvControl = PrLvNormal
	// PrLvAcuate is the alias of priority level for acuators.
	PrLvAcuate = PrLvLow
)
