package core

import "time"

// =============================================================================
// PanicHandler: invoked when a task's callable panics
// =============================================================================

// PanicHandler is called when a task's callable panics during execution.
// Implementations must be safe for concurrent use - every worker may call it.
type PanicHandler interface {
	// HandlePanic is called after the panic has already been captured onto
	// the task (task.Exception) and the task has transitioned to
	// StateFailed. The worker is never brought down by a user panic.
	HandlePanic(workerID int, task *Task, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

func (h *DefaultPanicHandler) HandlePanic(workerID int, task *Task, panicInfo any, stackTrace []byte) {
	log := h.Logger
	if log == nil {
		log = defaultLoggerInstance
	}
	fields := []Field{WorkerField(workerID), TaskField(task.ID())}
	if task.IsGrain() {
		fields = append(fields, GrainField(task.GrainNum()))
	}
	fields = append(fields, PanicField(panicInfo), StackField(stackTrace))
	log.Error("task panicked", fields...)
}

// =============================================================================
// Metrics: observability hooks for the scheduler core
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics. All
// methods must be non-blocking and fast - they run on the dispatch path.
// The observability/prometheus subpackage adapts this to real collectors.
type Metrics interface {
	// RecordTaskDuration records how long a task's callable took to run.
	RecordTaskDuration(priority int16, duration time.Duration)

	// RecordTaskPanic records that a task's callable panicked.
	RecordTaskPanic(workerID int)

	// RecordHeapDepth records the occupancy of one multiqueue heap.
	RecordHeapDepth(heapIndex, depth int)

	// RecordEnqueueRejected records an enqueueTask failure (heap full,
	// retries exhausted).
	RecordEnqueueRejected(reason string)

	// RecordGrainFanout records the observed G for a new_multi call.
	RecordGrainFanout(grains int)
}

// NilMetrics is the default no-op Metrics implementation.
type NilMetrics struct{}

func (NilMetrics) RecordTaskDuration(priority int16, duration time.Duration) {}
func (NilMetrics) RecordTaskPanic(workerID int)                             {}
func (NilMetrics) RecordHeapDepth(heapIndex, depth int)                     {}
func (NilMetrics) RecordEnqueueRejected(reason string)                      {}
func (NilMetrics) RecordGrainFanout(grains int)                             {}

// =============================================================================
// RejectedTaskHandler: invoked when enqueueTask exhausts its retries
// =============================================================================

// RejectedTaskHandler is called when a task could not be enqueued after the
// bounded retry policy in enqueueWithRetry gives up. The task is considered lost.
type RejectedTaskHandler interface {
	HandleRejectedTask(task *Task, reason string)
}

// DefaultRejectedTaskHandler logs the loss through a Logger.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

func (h *DefaultRejectedTaskHandler) HandleRejectedTask(task *Task, reason string) {
	log := h.Logger
	if log == nil {
		log = defaultLoggerInstance
	}
	log.Error("task lost, enqueue retries exhausted",
		TaskField(task.ID()),
		ReasonField(reason),
	)
}

// =============================================================================
// RuntimeConfig: tunables
// =============================================================================

// RuntimeConfig holds every tunable governing scheduler sizing plus the
// optional observability handlers, mirroring TaskSchedulerConfig's
// defaults-plus-override shape.
type RuntimeConfig struct {
	// Workers is W, the number of worker goroutines.
	Workers int

	// GrainK is GRAIN_K: grains per worker for a new_multi fan-out,
	// so G = GrainK * Workers.
	GrainK int

	// ArriversPow is ARRIVERS_P: num_arrivers = G^ArriversPow + 1.
	ArriversPow int

	// ReducersFrac is REDUCERS_FRAC: num_reducers = num_arrivers * ReducersFrac.
	ReducersFrac int

	// HeapsPerWorker is heap_c: heaps per worker in the multiqueue.
	HeapsPerWorker int

	// HeapFanout is heap_d: the d-ary fan-out of each heap.
	HeapFanout int

	// HeapCapacity is H: the fixed capacity of each heap.
	HeapCapacity int

	// StackSize is the advisory fiber stack size recorded on each task for
	// observability; the Go runtime manages the real goroutine stack.
	StackSize int

	// EnqueueRetries bounds how many times an internal caller (completion
	// queue drain, grain wake-up, requeueing yield, condition notify)
	// redraws a heap after a QueueFull error
	// before giving up and reporting the task as lost.
	EnqueueRetries int

	// EventLoop is serviced by worker 0 when it finds no sticky, no
	// multiqueue work. Defaults to NoOpEventLoop.
	EventLoop EventLoop

	// HistoryCapacity bounds how many completed TaskExecutionRecords the
	// runtime retains for Stats/RecentFailures/RecentGrainCompletions.
	// Scales with Workers by default rather than a fixed constant, so a
	// larger deployment retains proportionally more history.
	HistoryCapacity int

	PanicHandler        PanicHandler
	Metrics             Metrics
	RejectedTaskHandler RejectedTaskHandler
	Logger              Logger
}

// DefaultRuntimeConfig returns a config with sensible sizing defaults and
// default handlers, for w workers.
func DefaultRuntimeConfig(w int) *RuntimeConfig {
	if w < 1 {
		w = 1
	}
	logger := &DefaultLogger{Threshold: LevelInfo}
	return &RuntimeConfig{
		Workers:             w,
		GrainK:              4,
		ArriversPow:         2,
		ReducersFrac:        1,
		HeapsPerWorker:      defaultHeapsPerWorker,
		HeapFanout:          defaultHeapFanout,
		HeapCapacity:        defaultHeapCapacity,
		StackSize:           1 << 20, // 1 MiB
		EnqueueRetries:      8,
		EventLoop:           &NoOpEventLoop{},
		HistoryCapacity:     w * defaultHistoryCapacityPerWorker,
		PanicHandler:        &DefaultPanicHandler{Logger: logger},
		Metrics:             NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{Logger: logger},
		Logger:              logger,
	}
}

func (c *RuntimeConfig) grains() int {
	return c.GrainK * c.Workers
}
