package core

import (
	"runtime/debug"
	"time"
)

// fiberState is a task's suspend/resume handshake with whichever worker is
// currently driving it. doneCh carries control back to the worker's
// dispatch loop (a suspend or a final return); resumeCh wakes the fiber
// goroutine back up inside whatever call suspended it. Together they are
// this module's channel-based stand-in for setjmp/longjmp: a send/receive
// pair is a context switch, and the goroutine's own stack is the saved
// machine context - nothing is copied or restored by hand.
type fiberState struct {
	resumeCh chan struct{}
	doneCh   chan struct{}
}

// dispatch resumes task's fiber on worker w, blocking until the fiber
// either suspends (yield, sync, a not-last grain barrier) or runs to
// completion. It is called exactly once per multiqueue/sticky-queue pop.
func dispatch(rt *Runtime, w *workerState, t *Task) {
	t.worker = w
	t.currentTid.Store(int64(w.id))

	if t.fiber == nil {
		t.fiber = &fiberState{
			resumeCh: make(chan struct{}),
			doneCh:   make(chan struct{}),
		}
		go fiberMain(rt, t)
	} else {
		t.fiber.resumeCh <- struct{}{}
	}

	<-t.fiber.doneCh
	w.current = nil
}

// fiberMain is task_wrapper: entered exactly once per task, on its own
// goroutine, and never returns to dispatch's caller except through the
// suspend/resume handshake in yieldSelf.
func fiberMain(rt *Runtime, t *Task) {
	t.started.Store(true)
	runBody(rt, t)

	if t.IsGrain() {
		syncGrains(rt, t)
	}

	// Only now - after the grain barrier and any reduction have actually
	// finished, not merely after the callable returned - is t visible as
	// done to a concurrent Sync caller. See Task.isSettled.
	t.settled.Store(true)
	close(t.settledCh)

	if !t.IsDetached() {
		rt.drainCompletionQueue(t)
	}

	t.currentTid.Store(noWorker)
	t.worker = nil
	t.fiber.doneCh <- struct{}{}
}

func runBody(rt *Runtime, t *Task) {
	startedAt := time.Now()
	panicked := false

	defer func() {
		if r := recover(); r != nil {
			panicked = true
			stack := debug.Stack()
			t.Exception = &UserPanic{Value: r, Stack: stack}
			t.setState(StateFailed)
			rt.cfg.PanicHandler.HandlePanic(currentWorkerID(t), t, r, stack)
			rt.cfg.Metrics.RecordTaskPanic(currentWorkerID(t))
		}

		finishedAt := time.Now()
		rt.RecordCompletion(TaskExecutionRecord{
			TaskID:     t.id,
			Name:       t.name,
			WorkerID:   currentWorkerID(t),
			Priority:   t.priority,
			GrainNum:   t.grainNum,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   finishedAt.Sub(startedAt),
			Panicked:   panicked,
		})
	}()

	result, err := t.fn(rt, t)
	rt.cfg.Metrics.RecordTaskDuration(t.priority, time.Since(startedAt))

	if err != nil {
		t.Exception = err
		t.setState(StateFailed)
		return
	}
	t.result = result
	t.setState(StateDone)
}

// yieldSelf suspends the calling fiber, handing control back to the
// worker currently driving it. If requeue, self is re-enqueued before
// suspending. The call returns only once some worker's dispatch resumes
// this fiber again.
func yieldSelf(rt *Runtime, self *Task, requeue bool) {
	self.currentTid.Store(noWorker)
	if requeue {
		rt.enqueueWithRetry(self, "yield-requeue")
	}
	self.worker = nil
	self.fiber.doneCh <- struct{}{}
	<-self.fiber.resumeCh
}
