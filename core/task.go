package core

import (
	"sync"
	"sync/atomic"
)

// TaskState is the lifecycle state of a task. Transitions are
// StateRunnable -> StateDone on normal return, StateRunnable -> StateFailed
// on a captured panic or a returned error. Terminal states are sticky - once Done or Failed, a
// task never moves again.
type TaskState int32

const (
	StateRunnable TaskState = iota
	StateDone
	StateFailed
)

func (s TaskState) String() string {
	switch s {
	case StateRunnable:
		return "runnable"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// settings bitset flags, mirroring the source runtime's STICKY/DETACHED
// task settings.
const (
	settingSticky uint8 = 1 << 0
	settingDetach uint8 = 1 << 1
)

const noWorker = -1

// Callable is the opaque unit of work a task wraps. self gives the
// callable access to its own grain range (Start/End) and argument vector
// (Args) without a closure-per-task allocation being required, though a
// closure works too.
type Callable func(rt *Runtime, self *Task) (any, error)

// ReduceFunc combines two grain results into one. It must be associative;
// the grouping of operands follows the reducer tree's shape, not grain
// index. Within each pair, a is the value of the subtree whose grain
// arrived second and b is its sibling's, so the operand order of a
// non-commutative fn depends on arrival order.
type ReduceFunc func(a, b any) any

// completionQueue is the per-task FIFO of tasks blocked in Sync(this),
// drained exactly once by the finishing fiber.
type completionQueue struct {
	mu   sync.Mutex
	head *Task
}

// appendLocked appends t to the FIFO; callers that need to re-check a
// condition under the same critical section (Sync re-checking terminal
// state, Condition.Wait re-checking notify) lock cq.mu themselves and call
// this directly instead of a self-locking append.
func (cq *completionQueue) appendLocked(t *Task) {
	t.next = nil
	if cq.head == nil {
		cq.head = t
		return
	}
	tail := cq.head
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = t
}

// drain detaches the whole chain atomically and returns its head; the
// caller walks t.next to enumerate waiters in enqueue order.
func (cq *completionQueue) drain() *Task {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	head := cq.head
	cq.head = nil
	return head
}

// Task is a unit of schedulable work: an opaque callable, its scheduling
// metadata, and (for grain tasks) the arriver/reducer plumbing shared with
// its siblings. A Task's fiber is a dedicated goroutine parked on a
// channel; see fiber.go.
type Task struct {
	id TaskID

	fn   Callable
	Args any

	name string

	state      atomic.Int32
	started    atomic.Bool
	settled    atomic.Bool
	settings   uint8
	settingsMu sync.Mutex

	priority   int16
	currentTid atomic.Int64
	stickyTid  atomic.Int64

	result    any
	Exception error
	redResult any

	cq completionQueue
	// next chains this task into exactly one of: a sticky queue, a
	// completion queue, a condition wait-queue, or a sibling grain chain.
	// These uses are mutually exclusive in time.
	next *Task

	// Grain metadata. grainNum is -1 for a non-grain task.
	grainNum int
	Start    int
	End      int
	parent   *Task
	arriver  *arriver
	reducer  *reducer
	reduceFn ReduceFunc

	fiber *fiberState
	// worker is the workerState currently driving this task's fiber. It is
	// only valid while the task is actually running; it is written by
	// dispatch/yieldSelf and read by Spawn/Sync/Yield to find the current
	// worker's RNG, with the channel handshake around every write
	// establishing the happens-before needed for the next reader.
	worker *workerState

	// settledCh is closed exactly once, right when settled is stored true.
	// A fiber blocks on a completion queue entry instead (Sync re-enqueues
	// it through the scheduler), but a caller with no self - the host
	// goroutine spawning and syncing on the first task from outside any
	// fiber - has no fiber to suspend and resume, so it blocks on this
	// channel directly.
	settledCh chan struct{}

	stackSize int
}

func newTask(fn Callable, args any, name string, stackSize int) *Task {
	t := &Task{
		id:        GenerateTaskID(),
		fn:        fn,
		Args:      args,
		name:      name,
		grainNum:  -1,
		settledCh: make(chan struct{}),
		stackSize: stackSize,
	}
	t.state.Store(int32(StateRunnable))
	t.currentTid.Store(noWorker)
	t.stickyTid.Store(noWorker)
	return t
}

// ID returns the task's process-unique identifier.
func (t *Task) ID() TaskID { return t.id }

// Name returns the task's observability label.
func (t *Task) Name() string { return t.name }

// State returns the task's current lifecycle state.
func (t *Task) State() TaskState { return TaskState(t.state.Load()) }

func (t *Task) setState(s TaskState) { t.state.Store(int32(s)) }

func (t *Task) isTerminal() bool {
	s := t.State()
	return s == StateDone || s == StateFailed
}

// isSettled reports whether t has fully finished from a waiter's point of
// view: state transitions to Done/Failed as soon as the callable returns,
// but a grain task is not settled until its sync-tree ascent (and, for the
// fan-out's parent, any reduction result) has also completed. Sync must
// gate on this, not on State, or a concurrent caller can observe a grain
// parent's result before its redResult has actually been written.
func (t *Task) isSettled() bool {
	return t.settled.Load()
}

// Priority returns the task's current multiqueue priority.
func (t *Task) Priority() int16 { return t.priority }

func (t *Task) setSetting(flag uint8, on bool) {
	t.settingsMu.Lock()
	defer t.settingsMu.Unlock()
	if on {
		t.settings |= flag
	} else {
		t.settings &^= flag
	}
}

func (t *Task) hasSetting(flag uint8) bool {
	t.settingsMu.Lock()
	defer t.settingsMu.Unlock()
	return t.settings&flag != 0
}

// IsSticky reports whether the task is pinned to a single worker after its
// first dispatch.
func (t *Task) IsSticky() bool { return t.hasSetting(settingSticky) }

// IsDetached reports whether the task's completion queue is skipped
// entirely - no one may Sync on a detached task.
func (t *Task) IsDetached() bool { return t.hasSetting(settingDetach) }

// IsGrain reports whether this task is one grain of a data-parallel
// new_multi fan-out.
func (t *Task) IsGrain() bool { return t.grainNum >= 0 }

// GrainNum returns the task's grain index, or -1 if it is not a grain.
func (t *Task) GrainNum() int { return t.grainNum }

// CurrentWorker returns the id of the worker currently executing this
// task, or -1 if it is not currently running.
func (t *Task) CurrentWorker() int { return int(t.currentTid.Load()) }

// Result returns the task's resolved value once terminal. Callers should
// go through Sync rather than polling this directly.
func (t *Task) Result() any { return t.result }
