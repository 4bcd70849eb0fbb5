package core

import "sync"

const (
	defaultHeapsPerWorker = 4   // default heaps per worker
	defaultHeapFanout     = 8   // default d-ary fan-out
	defaultHeapCapacity   = 129 // default fixed capacity H

	prioEmpty int16 = 1<<15 - 1 // PRIO_EMPTY == INT16_MAX
)

// taskHeap is a fixed-capacity d-ary min-heap guarded by its own mutex, with
// an atomically published advisory summary of its root priority. Readers may
// consult prio without the lock but must re-validate under it before acting.
// fanout and capacity are set once at construction and shared by every heap
// in a Multiqueue.
type taskHeap struct {
	mu       sync.Mutex
	tasks    []*Task
	n        int
	prioAtom atomicInt16
	fanout   int
}

func (h *taskHeap) publishedPrio() int16 {
	return h.prioAtom.Load()
}

// siftUp restores heap order after an append at index i, per the heap's
// d-ary parent index (i-1)/d.
func (h *taskHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / h.fanout
		if h.tasks[i].Priority() < h.tasks[parent].Priority() {
			h.tasks[i], h.tasks[parent] = h.tasks[parent], h.tasks[i]
			i = parent
			continue
		}
		break
	}
}

// siftDown restores heap order after the root is replaced, scanning
// children in index order and swapping with the minimum child (the first
// one among equals) while its priority is <= the current node. Swapping
// with any smaller child would leave that child above a smaller sibling.
func (h *taskHeap) siftDown(i int) {
	for {
		first := h.fanout*i + 1
		if first >= h.n {
			return
		}
		last := first + h.fanout
		if last > h.n {
			last = h.n
		}
		minChild := first
		for c := first + 1; c < last; c++ {
			if h.tasks[c].Priority() < h.tasks[minChild].Priority() {
				minChild = c
			}
		}
		if h.tasks[minChild].Priority() > h.tasks[i].Priority() {
			return
		}
		h.tasks[i], h.tasks[minChild] = h.tasks[minChild], h.tasks[i]
		i = minChild
	}
}

// Multiqueue is an array of heapsPerWorker*W independently-locked min-heaps
// sampled at random for insert/extract, per the Rihani-Sanders-Schulz
// design. There is no global lock and a task lives in at most one heap at a
// time.
type Multiqueue struct {
	heaps   []taskHeap
	metrics Metrics
}

// NewMultiqueue builds a multiqueue sized for w workers, heapsPerWorker
// heaps each, each an fanout-ary heap with room for capacity tasks. A
// non-positive heapsPerWorker, fanout, or capacity falls back to the
// package defaults. metrics may be nil, in which case heap depth is only
// visible through Runtime.Stats.
func NewMultiqueue(w, heapsPerWorker, fanout, capacity int, metrics Metrics) *Multiqueue {
	if w < 1 {
		w = 1
	}
	if heapsPerWorker < 1 {
		heapsPerWorker = defaultHeapsPerWorker
	}
	if fanout < 1 {
		fanout = defaultHeapFanout
	}
	if capacity < 1 {
		capacity = defaultHeapCapacity
	}
	mq := &Multiqueue{heaps: make([]taskHeap, heapsPerWorker*w), metrics: metrics}
	for i := range mq.heaps {
		mq.heaps[i].prioAtom.Store(prioEmpty)
		mq.heaps[i].fanout = fanout
		mq.heaps[i].tasks = make([]*Task, capacity)
	}
	return mq
}

func (mq *Multiqueue) size() int { return len(mq.heaps) }

// Insert stores task in exactly one heap, chosen by a uniformly random draw
// from the caller's RNG, retrying on lock contention only (never on a full
// heap - a full heap is a hard failure).
func (mq *Multiqueue) Insert(rng randSource, task *Task, prio int16) error {
	n := uint64(mq.size())
	for {
		idx := rng.intn(n)
		h := &mq.heaps[idx]
		if !h.mu.TryLock() {
			continue
		}
		if h.n >= len(h.tasks) {
			h.mu.Unlock()
			return ErrQueueFull
		}
		i := h.n
		h.tasks[i] = task
		h.n++
		h.siftUp(i)
		depth := h.n
		h.mu.Unlock()

		if mq.metrics != nil {
			mq.metrics.RecordHeapDepth(int(idx), depth)
		}

		// Single-shot advisory publish: only if this task beats the
		// currently published minimum. A concurrent inserter or deleter
		// may race this and win; that's fine, the summary is advisory and
		// always re-validated under the heap lock before extraction.
		if p := h.publishedPrio(); prio < p {
			h.prioAtom.CompareAndSwap(p, prio)
		}
		return nil
	}
}

// DeleteMin returns a task of approximately minimum global priority using
// the two-random-choices policy, or nil if every heap appeared empty across
// w probe rounds.
func (mq *Multiqueue) DeleteMin(rng randSource, w int) *Task {
	n := uint64(mq.size())
	if n == 0 {
		return nil
	}
	rounds := w
	if rounds < 1 {
		rounds = 1
	}
	for round := 0; round < rounds; round++ {
		i1, i2 := rng.twoDistinct(n)
		p1 := mq.heaps[i1].publishedPrio()
		p2 := mq.heaps[i2].publishedPrio()
		if p1 == prioEmpty && p2 == prioEmpty {
			continue
		}
		chosen := i1
		observed := p1
		if p2 < p1 {
			chosen = i2
			observed = p2
		}
		h := &mq.heaps[chosen]
		if !h.mu.TryLock() {
			continue
		}
		if h.publishedPrio() != observed || h.n == 0 {
			h.mu.Unlock()
			continue
		}
		task := h.tasks[0]
		h.n--
		h.tasks[0] = h.tasks[h.n]
		h.tasks[h.n] = nil
		if h.n > 0 {
			h.siftDown(0)
		}
		if h.n > 0 {
			h.prioAtom.Store(h.tasks[0].Priority())
		} else {
			h.prioAtom.Store(prioEmpty)
		}
		depth := h.n
		h.mu.Unlock()

		if mq.metrics != nil {
			mq.metrics.RecordHeapDepth(int(chosen), depth)
		}
		return task
	}
	return nil
}
