package core

import (
	"sync/atomic"
	"testing"
)

// TestNewMultiTask_GrainSumReduction is spec.md sec 8's fourth end-to-end
// scenario: summing 0..999 across a data-parallel fan-out with a reducer
// must equal the closed-form sum, regardless of how grains interleave.
func TestNewMultiTask_GrainSumReduction(t *testing.T) {
	rt := startTestRuntime(t, 4)

	fn := func(rt *Runtime, self *Task) (any, error) {
		sum := 0
		for i := self.Start; i < self.End; i++ {
			sum += i
		}
		return sum, nil
	}
	reduce := func(a, b any) any { return a.(int) + b.(int) }

	parent, err := rt.NewMultiTask("sum-0-to-999", fn, 1000, reduce)
	if err != nil {
		t.Fatalf("NewMultiTask: %v", err)
	}
	if err := SpawnMulti(rt, nil, parent); err != nil {
		t.Fatalf("SpawnMulti: %v", err)
	}
	waitUntilStarted(t, parent)

	v, err := Sync(rt, nil, parent)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got, want := v.(int), 499500; got != want {
		t.Fatalf("grain sum = %d, want %d", got, want)
	}
}

// TestNewMultiTask_BarrierOnly is spec.md sec 8's fifth end-to-end
// scenario: a fan-out with no reducer still barriers correctly - Sync on
// the parent only unblocks once every grain has run, and the parent's
// result is nil since there is nothing to reduce into.
func TestNewMultiTask_BarrierOnly(t *testing.T) {
	rt := startTestRuntime(t, 4)

	var processed atomic.Int64
	fn := func(rt *Runtime, self *Task) (any, error) {
		processed.Add(int64(self.End - self.Start))
		return nil, nil
	}

	const count = 1000
	parent, err := rt.NewMultiTask("barrier-only", fn, count, nil)
	if err != nil {
		t.Fatalf("NewMultiTask: %v", err)
	}
	if err := SpawnMulti(rt, nil, parent); err != nil {
		t.Fatalf("SpawnMulti: %v", err)
	}
	waitUntilStarted(t, parent)

	v, err := Sync(rt, nil, parent)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if v != nil {
		t.Fatalf("Sync(barrier-only) = %v, want nil", v)
	}
	if got := processed.Load(); got != count {
		t.Fatalf("processed = %d, want %d - barrier let Sync through before every grain ran", got, count)
	}
}

// TestNewMultiTask_GrainsCoverDisjointRanges verifies the count is split
// into exactly G contiguous, non-overlapping ranges summing to count, with
// the remainder distributed one-per-grain to the first `count%grains`
// grains (spec.md sec 3's base/remainder split).
func TestNewMultiTask_GrainsCoverDisjointRanges(t *testing.T) {
	rt := startTestRuntime(t, 3)

	const count = 100
	grains := rt.cfg.grains()

	parent, err := rt.NewMultiTask("ranges", func(rt *Runtime, self *Task) (any, error) {
		return [2]int{self.Start, self.End}, nil
	}, count, nil)
	if err != nil {
		t.Fatalf("NewMultiTask: %v", err)
	}

	var ranges [][2]int
	g := parent
	for g != nil {
		ranges = append(ranges, [2]int{g.Start, g.End})
		g = g.next
	}
	if len(ranges) != grains {
		t.Fatalf("got %d grains, want %d", len(ranges), grains)
	}

	total := 0
	for i, r := range ranges {
		if r[0] < 0 || r[1] < r[0] {
			t.Fatalf("grain %d has invalid range %v", i, r)
		}
		total += r[1] - r[0]
		wantSize := count / grains
		if i < count%grains {
			wantSize++
		}
		if r[1]-r[0] != wantSize {
			t.Fatalf("grain %d has %d items, want %d", i, r[1]-r[0], wantSize)
		}
		if i > 0 && r[0] != ranges[i-1][1] {
			t.Fatalf("grain %d starts at %d, want %d (contiguous with previous end)", i, r[0], ranges[i-1][1])
		}
	}
	if total != count {
		t.Fatalf("ranges cover %d items total, want %d", total, count)
	}
}
