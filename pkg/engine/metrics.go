package engine

import "time"

// Outcome labels how a started task finished
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePanic   Outcome = "panic"
)

// Metrics receives engine events. Implementations must be safe for
// concurrent use and must not block; TaskSubmitted and PassCompleted are
// called with the scheduler lock held.
type Metrics interface {
	TaskSubmitted()
	TaskStarted(slot int, waited time.Duration)
	TaskFinished(outcome Outcome, ran time.Duration)
	TaskCanceled()
	TasksDropped(n int)
	PassCompleted(assigned, pending, busySlots int)
}

type nopMetrics struct{}

func (nopMetrics) TaskSubmitted() {}
func (nopMetrics) TaskStarted(int, time.Duration) {}
func (nopMetrics) TaskFinished(Outcome, time.Duration) {}
func (nopMetrics) TaskCanceled() {}
func (nopMetrics) TasksDropped(int) {}
func (nopMetrics) PassCompleted(assigned, pending, busy int) {}
