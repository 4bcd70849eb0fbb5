package core

import (
	"sync"
	"time"
)

// TaskExecutionRecord captures a single completed task's execution, added
// to the runtime's ring-buffer history when it terminates.
type TaskExecutionRecord struct {
	TaskID     TaskID
	Name       string
	WorkerID   int
	Priority   int16
	GrainNum   int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// isGrain reports whether the completed task this record describes was one
// grain of a new_multi fan-out.
func (r TaskExecutionRecord) isGrain() bool { return r.GrainNum >= 0 }

const (
	defaultHistoryCapacity          = 256
	defaultHistoryCapacityPerWorker = 32
)

// executionHistory is a bounded ring buffer of recently completed task
// executions, read through Runtime.Stats and the Runtime.Recent* helpers
// below. Unlike a plain completed-task log, it keeps two derived counters
// (panicked, grain) up to date as entries are overwritten, so a caller can
// ask "how many of what's currently retained were grain completions" in
// O(1) instead of re-scanning the buffer.
type executionHistory struct {
	mu           sync.Mutex
	items        []TaskExecutionRecord
	head         int
	count        int
	panicked     int
	grainEntries int
}

func newExecutionHistory(capacity int) executionHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return executionHistory{items: make([]TaskExecutionRecord, capacity)}
}

// Add appends record, overwriting the oldest retained entry once the buffer
// is full and adjusting the panicked/grain counters for whatever falls out.
func (h *executionHistory) Add(record TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	if h.count == len(h.items) {
		evicted := h.items[h.head]
		if evicted.Panicked {
			h.panicked--
		}
		if evicted.isGrain() {
			h.grainEntries--
		}
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
	if record.Panicked {
		h.panicked++
	}
	if record.isGrain() {
		h.grainEntries++
	}
}

// Recent returns up to limit most-recently-added records, newest first.
// limit <= 0 returns everything currently buffered.
func (h *executionHistory) Recent(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.filterLocked(limit, func(TaskExecutionRecord) bool { return true })
}

// RecentFailures returns up to limit most-recently-added panicked records,
// newest first - the worker/grain-level view of DefaultPanicHandler's log
// line, queryable after the fact instead of only at log time.
func (h *executionHistory) RecentFailures(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panicked == 0 {
		return nil
	}
	return h.filterLocked(limit, func(r TaskExecutionRecord) bool { return r.Panicked })
}

// RecentGrainCompletions returns up to limit most-recently-added records for
// tasks that were one grain of a new_multi fan-out, newest first.
func (h *executionHistory) RecentGrainCompletions(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.grainEntries == 0 {
		return nil
	}
	return h.filterLocked(limit, func(r TaskExecutionRecord) bool { return r.isGrain() })
}

func (h *executionHistory) filterLocked(limit int, keep func(TaskExecutionRecord) bool) []TaskExecutionRecord {
	if h.count == 0 {
		return nil
	}
	var out []TaskExecutionRecord
	for i := range h.count {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		rec := h.items[idx]
		if !keep(rec) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Last returns the single most recently added record.
func (h *executionHistory) Last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return TaskExecutionRecord{}, false
	}
	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}

// WorkerStats is a point-in-time snapshot of one worker's scheduling
// state.
type WorkerStats struct {
	ID          int
	StickyDepth int
	Running     bool
	CurrentTask string
}

// RuntimeStats is a point-in-time snapshot of the whole runtime, returned
// by Runtime.Stats().
type RuntimeStats struct {
	Workers          []WorkerStats
	HeapDepths       []int
	RecentTasks      []TaskExecutionRecord
	PanickedRetained int
	GrainsRetained   int
}

// Stats returns a snapshot of current scheduling state: per-worker sticky
// queue depth and current task, per-heap occupancy, and the most recently
// completed tasks (plus how many of those are panics or grain completions).
func (rt *Runtime) Stats() RuntimeStats {
	stats := RuntimeStats{
		Workers:    make([]WorkerStats, len(rt.workers)),
		HeapDepths: make([]int, rt.mq.size()),
	}
	for i, w := range rt.workers {
		w.sticky.mu.Lock()
		depth := 0
		for n := w.sticky.head; n != nil; n = n.next {
			depth++
		}
		w.sticky.mu.Unlock()

		name := ""
		running := w.current != nil
		if running {
			name = w.current.Name()
		}
		stats.Workers[i] = WorkerStats{ID: w.id, StickyDepth: depth, Running: running, CurrentTask: name}
	}
	for i := range rt.mq.heaps {
		h := &rt.mq.heaps[i]
		h.mu.Lock()
		stats.HeapDepths[i] = h.n
		h.mu.Unlock()
	}

	rt.history.mu.Lock()
	stats.PanickedRetained = rt.history.panicked
	stats.GrainsRetained = rt.history.grainEntries
	rt.history.mu.Unlock()

	stats.RecentTasks = rt.history.Recent(0)
	return stats
}

// RecordCompletion appends a TaskExecutionRecord to the runtime's bounded
// execution history. Called from fiberMain once a task reaches a terminal
// state.
func (rt *Runtime) RecordCompletion(rec TaskExecutionRecord) {
	rt.history.Add(rec)
}

// RecentFailures returns up to limit most-recently-completed panicked
// tasks, newest first, still retained in the bounded history.
func (rt *Runtime) RecentFailures(limit int) []TaskExecutionRecord {
	return rt.history.RecentFailures(limit)
}

// RecentGrainCompletions returns up to limit most-recently-completed grain
// tasks, newest first, still retained in the bounded history.
func (rt *Runtime) RecentGrainCompletions(limit int) []TaskExecutionRecord {
	return rt.history.RecentGrainCompletions(limit)
}
