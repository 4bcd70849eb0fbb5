package core

import (
	"context"
	"runtime"
	"sync"
)

// stickyQueue is a per-worker FIFO of tasks pinned to that worker, chained
// through Task.next and guarded by its own mutex. Tasks in a sticky queue
// are never also present in the multiqueue.
type stickyQueue struct {
	mu   sync.Mutex
	head *Task
	tail *Task
}

func (q *stickyQueue) pushBack(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.next = nil
	if q.tail == nil {
		q.head, q.tail = t, t
		return
	}
	q.tail.next = t
	q.tail = t
}

func (q *stickyQueue) popFront() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == nil {
		return nil
	}
	t := q.head
	q.head = t.next
	if q.head == nil {
		q.tail = nil
	}
	t.next = nil
	return t
}

// workerState is the per-worker thread-local data the scheduler needs:
// current task, RNG state, and the worker's own sticky queue. It lives for
// the lifetime of the Runtime, not per-task.
type workerState struct {
	id      int
	rt      *Runtime
	rng     *workerRNG
	sticky  *stickyQueue
	current *Task
}

// Runtime is the process-wide handle threading every scheduler primitive
// together - an explicit Runtime handle, since Go has no package-level
// scheduler state to piggyback on. A *Runtime and the executing *Task are
// passed into every public entry point; there is no ambient thread-local
// current-task lookup.
type Runtime struct {
	cfg *RuntimeConfig

	mq          *Multiqueue
	arriverPool *arriverPool
	reducerPool *reducerPool
	workers     []*workerState

	fallback *safeRNG

	startBarrier sync.WaitGroup
	runWG        sync.WaitGroup

	history executionHistory
}

// NewRuntime allocates the pools, multiqueue, and sticky queues per
// init_threading_infra, without starting any worker goroutines.
func NewRuntime(cfg *RuntimeConfig) *Runtime {
	if cfg == nil {
		cfg = DefaultRuntimeConfig(runtime.GOMAXPROCS(0))
	}
	grains := cfg.grains()
	numArrivers := intPow(grains, cfg.ArriversPow) + 1
	numReducers := numArrivers * cfg.ReducersFrac

	rt := &Runtime{
		cfg:         cfg,
		mq:          NewMultiqueue(cfg.Workers, cfg.HeapsPerWorker, cfg.HeapFanout, cfg.HeapCapacity, cfg.Metrics),
		arriverPool: newArriverPool(numArrivers, grains),
		reducerPool: newReducerPool(numReducers, grains),
		workers:     make([]*workerState, cfg.Workers),
		fallback:    newSafeRNG(0xdeadbeefcafef00d),
		history:     newExecutionHistory(cfg.HistoryCapacity),
	}
	for i := 0; i < cfg.Workers; i++ {
		rt.workers[i] = &workerState{
			id:     i,
			rt:     rt,
			rng:    newWorkerRNG(uint64(i)*0x9e3779b97f4a7c15 + 1),
			sticky: &stickyQueue{},
		}
	}
	return rt
}

func intPow(base, exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// Start launches one goroutine per worker, each joining a startup barrier
// (this module's analogue of jl_threadfun's uv_barrier_wait) before
// entering the run_next loop, and returns once all workers are live.
// Workers run until ctx is cancelled.
func (rt *Runtime) Start(ctx context.Context) {
	rt.startBarrier.Add(rt.cfg.Workers)
	rt.runWG.Add(rt.cfg.Workers)
	for _, w := range rt.workers {
		w := w
		go func() {
			defer rt.runWG.Done()
			rt.startBarrier.Done()
			rt.startBarrier.Wait()
			runNext(ctx, rt, w)
		}()
	}
	rt.startBarrier.Wait()
}

// Wait blocks until every worker goroutine has exited (the context passed
// to Start was cancelled and each worker drained its current dispatch).
func (rt *Runtime) Wait() {
	rt.runWG.Wait()
}

// runNext is the run_next loop: drain this worker's sticky queue, else
// sample the multiqueue, else service the event loop (worker 0) or yield
// the OS thread (others), and dispatch whatever was found.
func runNext(ctx context.Context, rt *Runtime, w *workerState) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t := w.sticky.popFront()
		if t == nil {
			t = rt.mq.DeleteMin(w.rng, rt.cfg.Workers)
			if t != nil && t.IsSticky() && t.stickyTid.Load() == noWorker {
				t.stickyTid.Store(int64(w.id))
			}
		}

		if t == nil {
			if w.id == 0 {
				rt.cfg.EventLoop.RunOnce(rt)
			} else {
				runtime.Gosched()
			}
			continue
		}

		w.current = t
		dispatch(rt, w, t)

		if w.id == 0 {
			rt.cfg.EventLoop.ProcessEvents(rt)
		}
	}
}

// enqueueTask routes task to its sticky queue if STICKY (requires
// sticky_tid already assigned by a prior dispatch), else inserts it into
// the multiqueue at its current priority.
func (rt *Runtime) enqueueTask(task *Task) error {
	if task.IsSticky() {
		tid := task.stickyTid.Load()
		if tid == noWorker {
			panic("partr: enqueueTask on a sticky task before its first dispatch")
		}
		rt.workers[tid].sticky.pushBack(task)
		return nil
	}
	return rt.mq.Insert(rt.rngFor(task), task, task.priority)
}

// enqueueWithRetry is the bounded-retry wrapper used by internal callers
// that cannot themselves return an error to their caller - the completion
// queue drain, the grain parent wake-up, a requeueing yield, and condition
// notify. Each retry redraws a fresh
// random heap; after cfg.EnqueueRetries attempts it reports the task lost
// through RejectedTaskHandler rather than retrying forever.
func (rt *Runtime) enqueueWithRetry(task *Task, reason string) {
	attempts := rt.cfg.EnqueueRetries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = rt.enqueueTask(task); err == nil {
			return
		}
	}
	rt.cfg.Metrics.RecordEnqueueRejected(reason)
	rt.cfg.RejectedTaskHandler.HandleRejectedTask(task, reason)
}

// rngFor returns the RNG a task's current fiber should draw from: its
// dispatching worker's RNG when running inside one, or the runtime's
// mutex-guarded fallback when called with no current task (e.g. spawning
// the first task from the host goroutine).
func (rt *Runtime) rngFor(task *Task) randSource {
	if task != nil && task.worker != nil {
		return task.worker.rng
	}
	return rt.fallback
}

// drainCompletionQueue detaches task's completion queue and re-enqueues
// every waiter exactly once, in the order they were appended.
func (rt *Runtime) drainCompletionQueue(task *Task) {
	waiter := task.cq.drain()
	for waiter != nil {
		next := waiter.next
		waiter.next = nil
		rt.enqueueWithRetry(waiter, "cq-drain")
		waiter = next
	}
}
