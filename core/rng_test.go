package core

import (
	"testing"
	"time"
)

// TestWorkerRNG_IntnBounds verifies intn never returns a value outside
// [0, n) across many draws, for several n including non-power-of-two
// values where naive modulo would be biased.
// Given: a workerRNG and a handful of candidate bounds
// When: intn(n) is called many times
// Then: every draw lands in [0, n)
func TestWorkerRNG_IntnBounds(t *testing.T) {
	r := newWorkerRNG(12345)

	for _, n := range []uint64{1, 2, 3, 7, 16, 129, 1000} {
		for i := 0; i < 2000; i++ {
			v := r.intn(n)
			if v >= n {
				t.Fatalf("intn(%d) = %d, want < %d", n, v, n)
			}
		}
	}
}

// TestWorkerRNG_IntnOneIsAlwaysZero verifies the n==1 fast path.
func TestWorkerRNG_IntnOneIsAlwaysZero(t *testing.T) {
	r := newWorkerRNG(1)
	for i := 0; i < 10; i++ {
		if v := r.intn(1); v != 0 {
			t.Fatalf("intn(1) = %d, want 0", v)
		}
	}
}

// TestWorkerRNG_IntnCoversFullRange verifies that over enough draws every
// value in a small range is eventually produced - a coarse check that
// sampling isn't skewed to a subset of [0, n).
func TestWorkerRNG_IntnCoversFullRange(t *testing.T) {
	r := newWorkerRNG(999)
	const n = 8
	seen := make(map[uint64]bool)

	for i := 0; i < 5000 && len(seen) < n; i++ {
		seen[r.intn(n)] = true
	}

	if len(seen) != n {
		t.Fatalf("saw %d distinct values out of %d after 5000 draws", len(seen), n)
	}
}

// TestWorkerRNG_TwoDistinct verifies the two sampled indices are always
// different and always in range.
func TestWorkerRNG_TwoDistinct(t *testing.T) {
	r := newWorkerRNG(42)
	const n = 5

	for i := 0; i < 2000; i++ {
		a, b := r.twoDistinct(n)
		if a == b {
			t.Fatalf("twoDistinct(%d) returned equal indices %d, %d", n, a, b)
		}
		if a >= n || b >= n {
			t.Fatalf("twoDistinct(%d) = (%d, %d), want both < %d", n, a, b, n)
		}
	}
}

// TestWorkerRNG_TwoDistinct_SingleChoiceDoesNotHang verifies the n==1
// degenerate case (a multiqueue with exactly one heap, per spec.md's W==1
// boundary) returns immediately instead of looping forever looking for a
// second, nonexistent distinct index.
func TestWorkerRNG_TwoDistinct_SingleChoiceDoesNotHang(t *testing.T) {
	r := newWorkerRNG(7)
	done := make(chan [2]uint64, 1)
	go func() {
		a, b := r.twoDistinct(1)
		done <- [2]uint64{a, b}
	}()
	select {
	case got := <-done:
		if got[0] != 0 || got[1] != 0 {
			t.Fatalf("twoDistinct(1) = %v, want (0, 0)", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("twoDistinct(1) did not return within 2s")
	}
}

// TestNewWorkerRNG_ZeroSeedIsRemapped verifies a zero seed doesn't leave
// the generator stuck producing a degenerate sequence.
func TestNewWorkerRNG_ZeroSeedIsRemapped(t *testing.T) {
	r := newWorkerRNG(0)
	if r.state == 0 {
		t.Fatal("workerRNG seeded with 0 should remap to a nonzero internal state")
	}
}

// TestUnbiasThreshold_IsMultipleOfN verifies the rejection boundary is
// always the largest multiple of n fitting in 64 bits, for both
// power-of-two and non-power-of-two n.
func TestUnbiasThreshold_IsMultipleOfN(t *testing.T) {
	for _, n := range []uint64{2, 3, 7, 129, 1000} {
		threshold := unbiasThreshold(n)
		if threshold%n != 0 {
			t.Errorf("unbiasThreshold(%d) = %d, not a multiple of %d", n, threshold, n)
		}
		if threshold == 0 {
			t.Errorf("unbiasThreshold(%d) = 0, want > 0", n)
		}
	}
}

// TestSafeRNG_ConcurrentUse exercises safeRNG's mutex-guarded path, used
// when there is no current worker (spawning the first task from the host
// goroutine).
func TestSafeRNG_ConcurrentUse(t *testing.T) {
	s := newSafeRNG(7)
	const n = 16

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 500; i++ {
				if v := s.intn(n); v >= n {
					t.Errorf("intn(%d) = %d, want < %d", n, v, n)
				}
				a, b := s.twoDistinct(n)
				if a == b {
					t.Errorf("twoDistinct(%d) returned equal indices", n)
				}
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
