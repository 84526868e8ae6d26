package prometheus_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fluxorio/slotengine/pkg/core"
	"github.com/fluxorio/slotengine/pkg/engine"
	slotprom "github.com/fluxorio/slotengine/pkg/observability/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// gathered returns the value of the named counter or gauge, summed over
// series whose labels include want.
func gathered(t *testing.T, g prometheus.Gatherer, name string, want map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !hasLabels(m, want) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestEngineMetrics_Direct(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := slotprom.NewEngineMetrics(reg)

	m.TaskSubmitted()
	m.TaskSubmitted()
	m.TaskStarted(0, 20*time.Millisecond)
	m.TaskFinished(engine.OutcomeFailure, 5*time.Millisecond)
	m.TaskCanceled()
	m.TasksDropped(3)
	m.TasksDropped(0)
	m.PassCompleted(2, 4, 1)

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"slotengine_tasks_submitted_total", nil, 2},
		{"slotengine_tasks_started_total", nil, 1},
		{"slotengine_tasks_finished_total", map[string]string{"outcome": "failure"}, 1},
		{"slotengine_tasks_canceled_total", nil, 1},
		{"slotengine_tasks_dropped_total", nil, 3},
		{"slotengine_scheduling_passes_total", nil, 1},
		{"slotengine_tasks_assigned_total", nil, 2},
		{"slotengine_pending_tasks", nil, 4},
		{"slotengine_busy_slots", nil, 1},
		{"slotengine_task_queue_wait_seconds", nil, 1},
		{"slotengine_task_run_seconds", map[string]string{"outcome": "failure"}, 1},
	}
	for _, tt := range tests {
		if got := gathered(t, reg, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

func TestEngineMetrics_WithEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := slotprom.NewEngineMetrics(reg)

	e, err := engine.New(context.Background(), engine.Config{
		Slots:            2,
		SchedulePeriod:   10 * time.Millisecond,
		ResultPollPeriod: 5 * time.Millisecond,
	}, engine.WithMetrics(m), engine.WithLogger(core.NewNopLogger()))
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	var futures []*engine.Future[int]
	for i := 0; i < 4; i++ {
		f, err := engine.Submit(e, func(ctx context.Context) (int, error) {
			if i == 3 {
				return 0, errors.New("odd one out")
			}
			return i, nil
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		futures = append(futures, f)
	}
	for _, f := range futures {
		_, _ = f.Get(context.Background())
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := e.AwaitTermination(context.Background()); err != nil {
		t.Fatalf("AwaitTermination failed: %v", err)
	}

	if got := gathered(t, reg, "slotengine_tasks_submitted_total", nil); got != 4 {
		t.Errorf("submitted = %v, want 4", got)
	}
	if got := gathered(t, reg, "slotengine_tasks_finished_total", map[string]string{"outcome": "success"}); got != 3 {
		t.Errorf("finished{success} = %v, want 3", got)
	}
	if got := gathered(t, reg, "slotengine_tasks_finished_total", map[string]string{"outcome": "failure"}); got != 1 {
		t.Errorf("finished{failure} = %v, want 1", got)
	}
	if got := gathered(t, reg, "slotengine_scheduling_passes_total", nil); got == 0 {
		t.Error("no scheduling passes recorded")
	}
}

func TestEngineMetrics_DefaultRegistererLabelsService(t *testing.T) {
	reg := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": "test"}, reg)
	m := slotprom.NewEngineMetrics(wrapped)
	m.TaskCanceled()

	if got := gathered(t, reg, "slotengine_tasks_canceled_total", map[string]string{"service": "test"}); got != 1 {
		t.Errorf("canceled{service=test} = %v, want 1", got)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := slotprom.NewEngineMetrics(reg)
	httpMetrics := slotprom.NewHTTPMetrics(reg)
	m.TaskSubmitted()

	ln := fasthttputil.NewInmemoryListener()
	defer ln.Close()

	go func() {
		_ = fasthttp.Serve(ln, httpMetrics.Middleware(slotprom.Handler(reg)))
	}()

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return ln.Dial()
			},
		},
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get("http://test/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "slotengine_tasks_submitted_total 1") {
		t.Errorf("metrics body missing submitted counter:\n%s", body)
	}

	if got := gathered(t, reg, "slotengine_http_requests_total", map[string]string{"path": "/metrics", "status": "2xx"}); got != 1 {
		t.Errorf("http_requests_total{/metrics,2xx} = %v, want 1", got)
	}
}
