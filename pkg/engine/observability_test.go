package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fluxorio/slotengine/pkg/core"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recordingMetrics struct {
	submitted atomic.Int32
	started   atomic.Int32
	canceled  atomic.Int32
	dropped   atomic.Int32
	passes    atomic.Int32

	mu       sync.Mutex
	outcomes []Outcome
}

func (m *recordingMetrics) TaskSubmitted() { m.submitted.Add(1) }
func (m *recordingMetrics) TaskStarted(int, time.Duration) { m.started.Add(1) }
func (m *recordingMetrics) TaskCanceled() { m.canceled.Add(1) }
func (m *recordingMetrics) TasksDropped(n int) { m.dropped.Add(int32(n)) }
func (m *recordingMetrics) PassCompleted(assigned, _, _ int) { m.passes.Add(1) }

func (m *recordingMetrics) TaskFinished(outcome Outcome, _ time.Duration) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, outcome)
	m.mu.Unlock()
}

func TestMetrics_ReceivesLifecycleEvents(t *testing.T) {
	m := &recordingMetrics{}
	e := newTestEngine(t, fastConfig(1, ModeSignal), WithMetrics(m))

	ok, _ := Submit(e, func(ctx context.Context) (int, error) { return 1, nil })
	bad, _ := Submit(e, func(ctx context.Context) (int, error) { return 0, errors.New("bad") })
	bang, _ := Submit(e, func(ctx context.Context) (int, error) { panic("bang") })
	for _, f := range []*Future[int]{ok, bad, bang} {
		_, _ = f.Get(context.Background())
	}

	release := make(chan struct{})
	defer close(release)
	hold, _ := Submit(e, blocker(release))
	waitFor(t, time.Second, "blocker to start", func() bool { return hold.State() == StateRunning && m.started.Load() == 4 })
	c, _ := Submit(e, func(ctx context.Context) (int, error) { return 0, nil })
	c.Cancel()
	_, _ = Submit(e, func(ctx context.Context) (int, error) { return 0, nil })
	_ = e.Shutdown(context.Background())

	if got := m.submitted.Load(); got != 6 {
		t.Errorf("submitted = %d, want 6", got)
	}
	if got := m.started.Load(); got != 4 {
		t.Errorf("started = %d, want 4", got)
	}
	if got := m.canceled.Load(); got != 1 {
		t.Errorf("canceled = %d, want 1", got)
	}
	if got := m.dropped.Load(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	if m.passes.Load() == 0 {
		t.Error("no passes recorded")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[Outcome]int{OutcomeSuccess: 1, OutcomeFailure: 1, OutcomePanic: 1}
	got := map[Outcome]int{}
	for _, o := range m.outcomes {
		got[o]++
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("outcome %s = %d, want %d (all: %v)", k, got[k], v, m.outcomes)
		}
	}
}

func TestTracing_SpanPerRun(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	e := newTestEngine(t, fastConfig(1, ModeSignal), WithTracerProvider(tp))

	sawSpan := false
	f, err := Submit(e, func(ctx context.Context) (int, error) {
		return 0, errors.New("traced failure")
	}, WithName("traced"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	_, _ = f.Get(context.Background())

	for _, span := range sr.Ended() {
		if span.Name() != "engine.task.run" {
			continue
		}
		sawSpan = true
		if span.Status().Code != codes.Error {
			t.Errorf("span status = %v, want Error", span.Status().Code)
		}
		attrs := map[string]string{}
		for _, kv := range span.Attributes() {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		if attrs["task.name"] != "traced" || attrs["task.id"] != f.ID() || attrs["engine.slot"] != "0" {
			t.Errorf("span attributes = %v", attrs)
		}
	}
	if !sawSpan {
		t.Error("no engine.task.run span recorded")
	}
}

func TestLogging_ObservabilityEvents(t *testing.T) {
	var buf syncBuffer
	logger := core.NewLogger(core.LoggerConfig{Level: "debug", Output: &buf})
	e := newTestEngine(t, fastConfig(1, ModeSignal), WithLogger(logger))

	f, _ := Submit(e, func(ctx context.Context) (int, error) { return 1, nil }, WithName("logged"))
	_, _ = f.Get(context.Background())
	f.Cancel()
	_, _ = Submit(e, func(ctx context.Context) (int, error) { return 0, errors.New("nope") })
	waitFor(t, time.Second, "failure to be logged", func() bool { return strings.Contains(buf.String(), "task failed") })

	out := buf.String()
	for _, want := range []string{"starting task on slot 0", "task completed", "cancel rejected", "task=logged", "no pending tasks"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
