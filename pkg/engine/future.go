package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fluxorio/slotengine/pkg/core"
)

// State is the lifecycle state of a submitted task.
type State int32

const (
	// StatePending: queued, not yet picked by a scheduling pass
	StatePending State = iota
	// StateRunning: assigned to a slot and executing
	StateRunning
	// StateCompleted: finished, successfully or not
	StateCompleted
	// StateCanceled: removed from the queue before it started
	StateCanceled
	// StateDropped: still queued when the engine shut down; never runs
	StateDropped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCanceled:
		return "canceled"
	case StateDropped:
		return "dropped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func (s State) terminal() bool {
	return s == StateCompleted || s == StateCanceled || s == StateDropped
}

// handle is the untyped state cell behind a Future.
type handle struct {
	id        string
	name      string
	fn        func(context.Context) (interface{}, error)
	engine    *Engine
	submitted time.Time

	// zero in ModeSignal; Get polls at this period in ModeLegacy
	pollPeriod time.Duration

	state atomic.Int32
	done  chan struct{} // closed on entering a terminal state

	// guarded by engine.mu
	queued bool

	// written once, before state becomes StateCompleted
	result interface{}
	err    error
}

func (h *handle) load() State {
	return State(h.state.Load())
}

// transition moves from -> to, closing done when to is terminal.
// Each handle enters a terminal state at most once.
func (h *handle) transition(from, to State) bool {
	if !h.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if to.terminal() {
		close(h.done)
	}
	return true
}

func (h *handle) complete(result interface{}, err error) {
	h.result = result
	h.err = err
	h.transition(StateRunning, StateCompleted)
}

func (h *handle) fields(slot int) core.Fields {
	f := core.Fields{"task_id": h.id}
	if h.name != "" {
		f["task"] = h.name
	}
	if slot >= 0 {
		f["slot"] = slot
	}
	return f
}

// outcome must only be called once the handle is terminal.
func (h *handle) outcome() (interface{}, error) {
	switch h.load() {
	case StateCompleted:
		if h.err != nil {
			return nil, &ExecutionError{TaskID: h.id, Name: h.name, Err: h.err}
		}
		return h.result, nil
	case StateCanceled:
		return nil, ErrCanceled
	default:
		return nil, ErrClosed
	}
}

func (h *handle) wait(ctx context.Context) error {
	if h.load().terminal() {
		return nil
	}

	if h.pollPeriod > 0 {
		ticker := time.NewTicker(h.pollPeriod)
		defer ticker.Stop()
		for !h.load().terminal() {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *handle) waitTimeout(timeout time.Duration) error {
	if h.load().terminal() {
		return nil
	}

	if h.pollPeriod > 0 {
		// Legacy contract: one blind sleep, then a single check.
		if timeout > 0 {
			time.Sleep(timeout)
		}
		if !h.load().terminal() {
			return ErrTimeout
		}
		return nil
	}

	if timeout <= 0 {
		return ErrTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

// Future is the caller's view of a submitted computation.
// All methods are safe for concurrent use.
type Future[T any] struct {
	h *handle
}

// ID returns the task's unique identifier
func (f *Future[T]) ID() string {
	return f.h.id
}

// Name returns the name given with WithName, if any
func (f *Future[T]) Name() string {
	return f.h.name
}

// State returns the current lifecycle state
func (f *Future[T]) State() State {
	return f.h.load()
}

// IsDone reports whether the computation has finished (successfully or not).
// Canceled and dropped tasks are never done.
func (f *Future[T]) IsDone() bool {
	return f.h.load() == StateCompleted
}

// IsCancelled reports whether Cancel succeeded for this task
func (f *Future[T]) IsCancelled() bool {
	return f.h.load() == StateCanceled
}

// Cancel removes the task from the pending queue. It returns true only if
// the task had not been dequeued for execution yet; a started task is never
// interrupted.
func (f *Future[T]) Cancel() bool {
	return f.h.engine.cancel(f.h)
}

// Get waits for the task to finish and returns its result.
//
// Errors:
//   - *ExecutionError: the computation returned an error or panicked.
//   - ErrCanceled: the task was canceled.
//   - ErrClosed: the engine shut down before the task started.
//   - ctx.Err(): ctx ended first. The task itself is unaffected.
//
// If ctx is nil, it is treated as context.Background().
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := f.h.wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return f.value()
}

// GetTimeout is Get with a bounded wait; it returns ErrTimeout when the
// result is not available within timeout.
func (f *Future[T]) GetTimeout(timeout time.Duration) (T, error) {
	if err := f.h.waitTimeout(timeout); err != nil {
		var zero T
		return zero, err
	}
	return f.value()
}

func (f *Future[T]) value() (T, error) {
	var zero T
	v, err := f.h.outcome()
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		// nil result for an interface-typed T
		return zero, nil
	}
	return typed, nil
}
