package engine

import (
	"time"
)

// loop runs scheduling passes until the engine context ends.
func (e *Engine) loop() {
	defer close(e.loopDone)

	ticker := time.NewTicker(e.cfg.SchedulePeriod)
	defer ticker.Stop()

	// nil in legacy mode: passes only happen on ticks
	var wake <-chan struct{}
	if e.cfg.Mode == ModeSignal {
		wake = e.wakeCh
	}

	for {
		e.pass()

		select {
		case <-e.ctx.Done():
			e.close()
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}

// signal requests an early pass. It never blocks; pending wakes coalesce.
func (e *Engine) signal() {
	if e.cfg.Mode != ModeSignal {
		return
	}
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

// pass matches queued tasks to free slots and returns how many it started.
// ModeLegacy starts at most one task per pass.
func (e *Engine) pass() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0
	}
	e.passes.Add(1)

	assigned := 0
	defer func() {
		e.metrics.PassCompleted(assigned, e.pendingLocked(), e.busySlotsLocked())
	}()

	if len(e.queue) == 0 {
		e.logger.Debug("no pending tasks")
		return 0
	}

	for {
		s := e.freeSlotLocked()
		if s == nil {
			if assigned == 0 {
				e.logger.Debug("all slots are busy")
			}
			return assigned
		}

		h := e.dequeueLocked()
		if h == nil {
			if assigned == 0 {
				e.logger.Debug("no schedulable tasks in queue")
			}
			return assigned
		}

		e.logger.WithFields(h.fields(s.id)).Infof("starting task on slot %d", s.id)
		s.assign(e, h)
		assigned++

		if e.cfg.Mode == ModeLegacy {
			return assigned
		}
	}
}

func (e *Engine) enqueue(h *handle) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	h.queued = true
	e.queue = append(e.queue, h)
	e.metrics.TaskSubmitted()
	e.mu.Unlock()

	e.submitted.Add(1)
	e.logger.WithFields(h.fields(-1)).Debug("task submitted")
	e.signal()
	return nil
}

// dequeueLocked pops from the front, discarding canceled tasks, and returns
// the first task it moved to StateRunning (nil if the queue ran dry).
func (e *Engine) dequeueLocked() *handle {
	for len(e.queue) > 0 {
		h := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		h.queued = false

		if h.load() == StateCanceled {
			e.canceledInQueue--
			continue
		}
		if h.transition(StatePending, StateRunning) {
			return h
		}
	}
	e.queue = nil
	return nil
}

func (e *Engine) freeSlotLocked() *slot {
	for _, s := range e.slots {
		if s.isFree() {
			return s
		}
	}
	return nil
}

func (e *Engine) pendingLocked() int {
	return len(e.queue) - e.canceledInQueue
}

func (e *Engine) busySlotsLocked() int {
	busy := 0
	for _, s := range e.slots {
		if !s.isFree() {
			busy++
		}
	}
	return busy
}

// cancel succeeds only for a task that is still in the queue and not yet
// canceled. The check and the state change happen under the scheduler lock,
// so they cannot interleave with a pass dequeuing the same task.
func (e *Engine) cancel(h *handle) bool {
	e.mu.Lock()
	reason := ""
	switch st := h.load(); {
	case st == StateCompleted:
		reason = "task already completed"
	case !h.queued:
		reason = "task is " + st.String()
	case !h.transition(StatePending, StateCanceled):
		reason = "task already canceled"
	default:
		e.canceledInQueue++
	}
	e.mu.Unlock()

	log := e.logger.WithFields(h.fields(-1))
	if reason != "" {
		log.Infof("cancel rejected: %s", reason)
		return false
	}

	e.canceled.Add(1)
	e.metrics.TaskCanceled()
	log.Info("task canceled")
	return true
}

// close flips the shutdown flag once, drops the queue and releases the slots.
func (e *Engine) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true

	dropped := 0
	for _, h := range e.queue {
		h.queued = false
		if h.transition(StatePending, StateDropped) {
			dropped++
		}
	}
	e.queue = nil
	e.canceledInQueue = 0
	e.slots = nil
	close(e.closedCh)
	e.mu.Unlock()

	if dropped > 0 {
		e.dropped.Add(uint64(dropped))
		e.metrics.TasksDropped(dropped)
	}
	e.logger.Infof("engine shut down, dropped %d pending tasks", dropped)
}
