package engine

import (
	"context"
)

// Task is a named unit of work that only reports success or failure.
// Use Execute to run one on an Engine; use Submit for computations that
// produce a value.
type Task interface {
	// Execute performs the task work
	Execute(ctx context.Context) error

	// Name returns a human-readable name for logs and spans
	Name() string
}

// TaskFunc adapts a plain function to Task
type TaskFunc func(ctx context.Context) error

// Execute implements Task interface for TaskFunc
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Name returns an empty name; the engine then identifies the task by ID only
func (f TaskFunc) Name() string {
	return ""
}

// NamedTask wraps a TaskFunc with a custom name
type NamedTask struct {
	name string
	task TaskFunc
}

// NewNamedTask creates a new NamedTask
func NewNamedTask(name string, task TaskFunc) *NamedTask {
	return &NamedTask{
		name: name,
		task: task,
	}
}

// Execute implements Task interface
func (nt *NamedTask) Execute(ctx context.Context) error {
	return nt.task(ctx)
}

// Name returns the task name
func (nt *NamedTask) Name() string {
	return nt.name
}
