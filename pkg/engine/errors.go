package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Submit after Shutdown, and by Get for tasks
	// that were still queued when the engine shut down.
	ErrClosed = errors.New("engine: engine closed")

	// ErrNilTask is returned when submitting a nil computation
	ErrNilTask = errors.New("engine: task cannot be nil")

	// ErrTimeout is returned by GetTimeout when the result is not ready in time
	ErrTimeout = errors.New("engine: timed out waiting for result")

	// ErrCanceled is returned by Get for canceled tasks
	ErrCanceled = errors.New("engine: task canceled")

	// ErrInvalidConfig wraps every configuration validation failure
	ErrInvalidConfig = errors.New("engine: invalid config")
)

// ExecutionError reports that a task's computation failed.
// Unwrap returns the computation's error (or a *PanicError).
type ExecutionError struct {
	TaskID string
	Name   string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("engine: task %s (%s) failed: %v", e.Name, e.TaskID, e.Err)
	}
	return fmt.Sprintf("engine: task %s failed: %v", e.TaskID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PanicError is the cause recorded when a computation panics
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
