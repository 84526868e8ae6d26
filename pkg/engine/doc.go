// Package engine runs deferred computations on a fixed number of execution
// slots and hands back a Future for each one.
//
// # Usage
//
//	e, err := engine.New(ctx, engine.DefaultConfig(4))
//	if err != nil {
//		return err
//	}
//	defer e.Shutdown(context.Background())
//
//	f, err := engine.Submit(e, func(ctx context.Context) (int, error) {
//		return compute(ctx)
//	}, engine.WithName("compute"))
//	if err != nil {
//		return err // ErrClosed after Shutdown
//	}
//	n, err := f.Get(ctx)
//
// # Scheduling
//
// Submitted tasks wait in a FIFO queue. A scheduling pass takes the oldest
// non-canceled task and starts it on a free slot. Passes run every
// Config.SchedulePeriod. In ModeSignal (the default) a submission or a
// finished task also triggers a pass, and one pass fills every free slot.
// ModeLegacy keeps the period as the only trigger and starts at most one task
// per pass, so throughput is bounded by the period.
//
// A slot is free when it has never run anything or its last task completed.
// At most Config.Slots computations run at any instant.
//
// # Cancellation
//
// Future.Cancel succeeds only while the task is still queued. Once a pass has
// dequeued it, Cancel returns false and the computation runs to completion.
//
// # Results
//
// Get blocks until the task finishes; GetTimeout bounds the wait and returns
// ErrTimeout. A computation's error, or a recovered panic, is returned as an
// *ExecutionError. Canceled tasks yield ErrCanceled; tasks still queued at
// Shutdown yield ErrClosed and never report IsDone.
//
// # Shutdown
//
// Shutdown drops the queue and stops scheduling. Running computations are
// not interrupted; AwaitTermination waits for them.
package engine
