package engine

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/fluxorio/slotengine/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// slot runs at most one task at a time. Its fields are guarded by Engine.mu.
type slot struct {
	id       int
	occupant *handle
}

// isFree reports whether the slot was never used or its last task completed.
// Slots never announce completion themselves; the scheduler discovers it here.
func (s *slot) isFree() bool {
	return s.occupant == nil || s.occupant.load() == StateCompleted
}

// assign starts h on a new goroutine. The caller must hold Engine.mu, must
// have moved h to StateRunning, and must only pass slots that are free.
func (s *slot) assign(e *Engine, h *handle) {
	s.occupant = h
	e.running.Add(1)
	e.inflight.Add(1)
	go s.run(e, h)
}

func (s *slot) run(e *Engine, h *handle) {
	defer e.inflight.Done()

	log := e.logger.WithFields(h.fields(s.id))
	started := time.Now()
	e.metrics.TaskStarted(s.id, started.Sub(h.submitted))

	attrs := []attribute.KeyValue{
		attribute.String("task.id", h.id),
		attribute.Int("engine.slot", s.id),
	}
	if h.name != "" {
		attrs = append(attrs, attribute.String("task.name", h.name))
	}
	ctx, span := e.tracer.Start(e.parent, "engine.task.run", trace.WithAttributes(attrs...))

	result, err := call(ctx, h.fn)
	ran := time.Since(started)

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
		var pe *PanicError
		if errors.As(err, &pe) {
			outcome = OutcomePanic
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.failed.Add(1)
		log.WithFields(core.Fields{"error": err.Error(), "outcome": string(outcome)}).
			Errorf("task failed after %v", ran)
	} else {
		log.Infof("task completed in %v", ran)
	}
	span.End()

	e.metrics.TaskFinished(outcome, ran)
	e.completed.Add(1)
	e.running.Add(-1)
	h.complete(result, err)
	e.signal()
}

// call runs fn, converting a panic into a *PanicError.
func call(ctx context.Context, fn func(context.Context) (interface{}, error)) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}
