package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/slotengine/pkg/core"
	"github.com/fluxorio/slotengine/pkg/core/failfast"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fluxorio/slotengine/pkg/engine"

// Stats is a point-in-time view of an Engine
type Stats struct {
	Mode      string `json:"mode"`
	Slots     int    `json:"slots"`      // configured slot count
	BusySlots int    `json:"busy_slots"` // slots whose occupant has not completed
	Pending   int    `json:"pending"`    // queued tasks that are not canceled
	Running   int64  `json:"running"`    // computations currently executing

	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"` // includes failed runs
	Failed    uint64 `json:"failed"`
	Canceled  uint64 `json:"canceled"`
	Dropped   uint64 `json:"dropped"` // queued tasks discarded by Shutdown
	Passes    uint64 `json:"passes"`

	Closed bool `json:"closed"`
}

// Engine schedules submitted computations onto a fixed set of slots.
//
// A single mutex guards the pending queue and the slots. Enqueue, the
// scheduling pass and Cancel's queue-membership check all take it, so a task
// is never seen as both cancelable and started. The lock is never held while
// a computation runs.
type Engine struct {
	cfg     Config
	logger  core.Logger
	metrics Metrics
	tracer  trace.Tracer

	parent   context.Context // handed to computations; Shutdown does not cancel it
	ctx      context.Context // scheduling loop lifetime
	stopLoop context.CancelFunc
	wakeCh   chan struct{}
	loopDone chan struct{}
	closedCh chan struct{}
	inflight sync.WaitGroup

	mu              sync.Mutex
	closed          bool
	queue           []*handle
	canceledInQueue int
	slots           []*slot

	running   atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	canceled  atomic.Uint64
	dropped   atomic.Uint64
	passes    atomic.Uint64
}

// New creates an Engine and starts its scheduling loop.
//
// Zero periods in config take their defaults. Slots == 0 is valid: tasks are
// accepted but never run, and no loop is started.
//
// Canceling ctx stops scheduling the same way Shutdown does. Computations
// receive ctx (plus a tracing span), so canceling it is also how a caller
// asks running computations to stop.
func New(ctx context.Context, config Config, opts ...Option) (*Engine, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      config,
		logger:   core.NewDefaultLogger(),
		metrics:  nopMetrics{},
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
		parent:   ctx,
		wakeCh:   make(chan struct{}, 1),
		loopDone: make(chan struct{}),
		closedCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.stopLoop = context.WithCancel(ctx)

	e.slots = make([]*slot, config.Slots)
	for i := range e.slots {
		e.slots[i] = &slot{id: i}
	}

	if config.Slots == 0 {
		e.logger.Warn("engine created with zero slots; submitted tasks will never run")
		close(e.loopDone)
		context.AfterFunc(e.ctx, e.close)
		return e, nil
	}

	go e.loop()
	e.logger.Infof("engine started: %d slots, schedule period %v, mode %s",
		config.Slots, config.SchedulePeriod, config.Mode)
	return e, nil
}

// Submit queues fn for execution and returns immediately.
// It returns ErrNilTask for a nil fn and ErrClosed after Shutdown.
func Submit[T any](e *Engine, fn func(context.Context) (T, error), opts ...TaskOption) (*Future[T], error) {
	failfast.NotNil(e, "engine")
	if fn == nil {
		return nil, ErrNilTask
	}

	var o taskOptions
	for _, opt := range opts {
		opt(&o)
	}

	h := e.newHandle(o.name, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err := e.enqueue(h); err != nil {
		return nil, err
	}
	return &Future[T]{h: h}, nil
}

// Execute queues a Task. The task's Name is used unless opts override it.
func Execute(e *Engine, task Task, opts ...TaskOption) (*Future[struct{}], error) {
	if task == nil {
		return nil, ErrNilTask
	}
	opts = append([]TaskOption{WithName(task.Name())}, opts...)
	return Submit(e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task.Execute(ctx)
	}, opts...)
}

func (e *Engine) newHandle(name string, fn func(context.Context) (interface{}, error)) *handle {
	h := &handle{
		id:        uuid.NewString(),
		name:      name,
		fn:        fn,
		engine:    e,
		submitted: time.Now(),
		done:      make(chan struct{}),
	}
	if e.cfg.Mode == ModeLegacy {
		h.pollPeriod = e.cfg.ResultPollPeriod
	}
	return h
}

// Shutdown stops scheduling and drops every queued task; dropped tasks never
// run and their Get returns ErrClosed. Running computations are neither
// interrupted nor awaited (see AwaitTermination).
//
// Shutdown waits for the scheduling loop to exit, bounded by ctx.
// Calling it again is a no-op.
func (e *Engine) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.close()
	e.stopLoop()

	select {
	case <-e.loopDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// AwaitTermination blocks until Shutdown has been called and every
// computation that was running at that point has finished, or ctx ends.
func (e *Engine) AwaitTermination(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-e.closedCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	// No slot is assigned after closedCh is closed, so the WaitGroup cannot
	// grow from here on.
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config returns the effective configuration (defaults applied)
func (e *Engine) Config() Config {
	return e.cfg
}

// Stats returns current engine statistics
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	pending := e.pendingLocked()
	busy := e.busySlotsLocked()
	closed := e.closed
	e.mu.Unlock()

	return Stats{
		Mode:      e.cfg.Mode.String(),
		Slots:     e.cfg.Slots,
		BusySlots: busy,
		Pending:   pending,
		Running:   e.running.Load(),
		Submitted: e.submitted.Load(),
		Completed: e.completed.Load(),
		Failed:    e.failed.Load(),
		Canceled:  e.canceled.Load(),
		Dropped:   e.dropped.Load(),
		Passes:    e.passes.Load(),
		Closed:    closed,
	}
}
