package core

// siblingIndex returns the other child of ridx's parent in a binary tree
// laid out with children at 2p+1/2p+2. Plain XOR-with-1 only pairs siblings
// correctly for a 1-indexed layout; here node 1's children are {3,4}, and
// 3^1 == 2, not 4. The actual rule is odd index pairs with index+1, even
// pairs with index-1.
func siblingIndex(ridx int) int {
	if ridx&1 == 1 {
		return ridx + 1
	}
	return ridx - 1
}

// ascend walks grainIdx's leaf up the implicit binary fan-in tree shared by
// a new_multi fan-out of G grains, incrementing one arrival counter per
// internal node. It returns true iff this call is the one that completed
// the ascent all the way to the root (the "LAST" arriver).
//
// If red is non-nil, each step additionally combines the climbing value
// with the sibling subtree's published value via fn and writes the result
// into the parent slot - the reducer tree walk is the same shape as the
// arrival walk, just with a value carried along, so the ascent and the
// reduction are one algorithm rather than two passes.
func ascend(a *arriver, red *reducer, fn ReduceFunc, grainIdx, grains int, leafVal any) bool {
	leaf := grainIdx + grains - 1
	if red != nil {
		red.slots[leaf] = leafVal
	}

	ridx := leaf
	for ridx > 0 {
		parent := (ridx - 1) >> 1
		prev := a.fetchAddArrive(parent)
		if prev == 0 {
			return false // first arrival at this node: NOT_LAST
		}
		if red != nil {
			nidx := siblingIndex(ridx)
			red.slots[parent] = fn(red.slots[ridx], red.slots[nidx])
		}
		ridx = parent
	}
	return true
}

// syncGrains is the grain termination path entered from fiberMain for any
// task with grainNum >= 0: it ascends the sync tree and, if this grain
// turns out not to be the last arriver and is itself the fan-out's parent
// grain, suspends until the last arriver wakes it.
func syncGrains(rt *Runtime, self *Task) {
	grains := rt.cfg.grains()

	var leafVal any
	if self.reducer != nil {
		leafVal = self.result
	}

	isLast := ascend(self.arriver, self.reducer, self.reduceFn, self.grainNum, grains, leafVal)

	parent := self.parent
	if self.grainNum == 0 {
		parent = self
	}

	if isLast {
		if self.reducer != nil {
			parent.redResult = self.reducer.slots[0]
		}
		// The last arriver owns both shared objects; no sibling may touch
		// them again after this point.
		rt.arriverPool.free(self.arriver)
		if self.reducer != nil {
			rt.reducerPool.free(self.reducer)
		}
		if self.grainNum != 0 {
			parent.priority = 0 // wake at highest priority
			rt.enqueueWithRetry(parent, "grain-wake-parent")
		}
		return
	}

	if self.grainNum == 0 {
		// Parent was not last: block here until the last sibling enqueues
		// it, per sync_grains's documented yield-without-requeue.
		yieldSelf(rt, self, false)
	}
}
