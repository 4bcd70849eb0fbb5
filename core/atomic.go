package core

import "sync/atomic"

// atomicInt16 is a published-summary cell: loaded without a lock by
// multiqueue readers, stored and single-shot CAS'd under the owning heap's
// lock (store) or as a best-effort advisory update (CAS). There is no
// atomic.Int16 in the standard library, so this wraps atomic.Int32.
type atomicInt16 struct {
	v atomic.Int32
}

func (a *atomicInt16) Load() int16 {
	return int16(a.v.Load())
}

func (a *atomicInt16) Store(x int16) {
	a.v.Store(int32(x))
}

func (a *atomicInt16) CompareAndSwap(old, new int16) bool {
	return a.v.CompareAndSwap(int32(old), int32(new))
}
