package prometheus

import (
	"time"

	"github.com/fluxorio/slotengine/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "slotengine"}, DefaultRegistry)
)

var _ engine.Metrics = (*EngineMetrics)(nil)

// EngineMetrics exports engine events as Prometheus metrics.
// Pass it to engine.New with engine.WithMetrics.
type EngineMetrics struct {
	// Task lifecycle
	TasksSubmitted    prometheus.Counter
	TasksStarted      prometheus.Counter
	TasksFinished     *prometheus.CounterVec
	TasksCanceled     prometheus.Counter
	TasksDroppedTotal prometheus.Counter

	// Scheduling
	SchedulingPasses prometheus.Counter
	TasksAssigned    prometheus.Counter
	PendingTasks     prometheus.Gauge
	BusySlots        prometheus.Gauge

	// Latency
	QueueWait   prometheus.Histogram
	RunDuration *prometheus.HistogramVec
}

// NewEngineMetrics registers the engine metrics with registerer
// (DefaultRegisterer when nil). Registering twice on one registerer panics.
func NewEngineMetrics(registerer prometheus.Registerer) *EngineMetrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &EngineMetrics{
		TasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "slotengine_tasks_submitted_total",
			Help: "Total number of tasks accepted by Submit",
		}),
		TasksStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "slotengine_tasks_started_total",
			Help: "Total number of tasks started on a slot",
		}),
		TasksFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotengine_tasks_finished_total",
				Help: "Total number of finished tasks",
			},
			[]string{"outcome"}, // outcome: success, failure, panic
		),
		TasksCanceled: factory.NewCounter(prometheus.CounterOpts{
			Name: "slotengine_tasks_canceled_total",
			Help: "Total number of tasks canceled before they started",
		}),
		TasksDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "slotengine_tasks_dropped_total",
			Help: "Total number of queued tasks discarded at shutdown",
		}),

		SchedulingPasses: factory.NewCounter(prometheus.CounterOpts{
			Name: "slotengine_scheduling_passes_total",
			Help: "Total number of scheduling passes",
		}),
		TasksAssigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "slotengine_tasks_assigned_total",
			Help: "Total number of slot assignments made by scheduling passes",
		}),
		PendingTasks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slotengine_pending_tasks",
			Help: "Queued tasks that are not canceled, as of the last pass",
		}),
		BusySlots: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slotengine_busy_slots",
			Help: "Slots with an unfinished occupant, as of the last pass",
		}),

		QueueWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "slotengine_task_queue_wait_seconds",
			Help:    "Time from submission to start in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slotengine_task_run_seconds",
				Help:    "Task execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
}

func (m *EngineMetrics) TaskSubmitted() {
	m.TasksSubmitted.Inc()
}

func (m *EngineMetrics) TaskStarted(_ int, waited time.Duration) {
	m.TasksStarted.Inc()
	m.QueueWait.Observe(waited.Seconds())
}

func (m *EngineMetrics) TaskFinished(outcome engine.Outcome, ran time.Duration) {
	m.TasksFinished.WithLabelValues(string(outcome)).Inc()
	m.RunDuration.WithLabelValues(string(outcome)).Observe(ran.Seconds())
}

func (m *EngineMetrics) TaskCanceled() {
	m.TasksCanceled.Inc()
}

func (m *EngineMetrics) TasksDropped(n int) {
	if n > 0 {
		m.TasksDroppedTotal.Add(float64(n))
	}
}

func (m *EngineMetrics) PassCompleted(assigned, pending, busySlots int) {
	m.SchedulingPasses.Inc()
	if assigned > 0 {
		m.TasksAssigned.Add(float64(assigned))
	}
	m.PendingTasks.Set(float64(pending))
	m.BusySlots.Set(float64(busySlots))
}
