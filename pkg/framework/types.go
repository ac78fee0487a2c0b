package framework

import (
	"context"

	"github.com/robotalks/framelink/pkg/framing"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Task is a cooperative unit of work advanced once per Loop pass.
// Step must never block: a task waiting for something simply returns
// and is stepped again on the next pass.
type Task interface {
	// Step advances the task. It returns true when the task reached a
	// terminal state and needs no more passes.
	Step(now framing.Tick) bool
}

// Stopper is implemented by tasks which must release waiters when the
// loop stops running them.
type Stopper interface {
	Stop(err error)
}

// StepFunc is the func form of Task.
type StepFunc func(framing.Tick) bool

// Step implements Task.
func (f StepFunc) Step(now framing.Tick) bool {
	return f(now)
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}
