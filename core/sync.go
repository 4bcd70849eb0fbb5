package core

// NewTask resolves fn against the runtime and allocates a task object. A
// nil callable is rejected outright rather than silently treated as a
// trivial constant-return function.
func (rt *Runtime) NewTask(name string, fn Callable, args any) (*Task, error) {
	if fn == nil {
		return nil, ErrConstantReturn
	}
	return newTask(fn, args, name, rt.cfg.StackSize), nil
}

// NewMultiTask splits [0, count) across G = GrainK*Workers grains sharing
// one callable, an arriver, and - if reduceFn is non-nil - a reducer. It
// returns grain 0, the parent, or an error if the sync-tree pools are
// exhausted (nothing is left partially allocated on failure).
func (rt *Runtime) NewMultiTask(name string, fn Callable, count int, reduceFn ReduceFunc) (*Task, error) {
	if fn == nil {
		return nil, ErrConstantReturn
	}

	grains := rt.cfg.grains()
	a := rt.arriverPool.alloc()
	if a == nil {
		return nil, ErrPoolExhausted
	}

	var red *reducer
	if reduceFn != nil {
		red = rt.reducerPool.alloc()
		if red == nil {
			rt.arriverPool.free(a)
			return nil, ErrPoolExhausted
		}
	}

	rt.cfg.Metrics.RecordGrainFanout(grains)

	base, rem := count/grains, count%grains
	var parent, prev *Task
	start := 0
	for i := 0; i < grains; i++ {
		end := start + base
		if i < rem {
			end++
		}

		g := newTask(fn, nil, name, rt.cfg.StackSize)
		g.Start, g.End = start, end
		g.grainNum = i
		g.arriver = a
		g.reducer = red
		g.reduceFn = reduceFn

		if i == 0 {
			parent = g
		} else {
			g.parent = parent
		}
		if prev != nil {
			prev.next = g
		}
		prev = g
		start = end
	}
	return parent, nil
}

// Spawn enqueues task for execution. If the calling task (self) is not
// itself STICKY, the caller yields and requeues so the multiqueue gets a
// chance to hand the worker something else; sticky callers never yield on
// spawn, staying pinned to their worker. self may be nil when spawning the
// first task from outside any fiber.
func Spawn(rt *Runtime, self *Task, task *Task, sticky, detach bool) error {
	if task == nil {
		return ErrInvalidTask
	}
	if !task.started.Load() {
		task.setSetting(settingSticky, sticky)
		task.setSetting(settingDetach, detach)
	}

	task.priority = int16(currentWorkerID(self))
	if err := rt.mq.Insert(rt.rngFor(self), task, task.priority); err != nil {
		return err
	}

	if self != nil && !self.IsSticky() {
		yieldSelf(rt, self, true)
	}
	return nil
}

// SpawnMulti walks parent's sibling chain of length G, enqueueing each
// grain at the spawning worker's id, then yields exactly as Spawn does
// unless self is sticky. Returns ErrMissingSibling if the chain is shorter
// than G, which would indicate a corrupted NewMultiTask result.
func SpawnMulti(rt *Runtime, self *Task, parent *Task) error {
	if parent == nil {
		return ErrInvalidTask
	}
	grains := rt.cfg.grains()
	wid := int16(currentWorkerID(self))

	g := parent
	for i := 0; i < grains; i++ {
		if g == nil {
			return ErrMissingSibling
		}
		g.priority = wid
		if err := rt.mq.Insert(rt.rngFor(self), g, wid); err != nil {
			return err
		}
		g = g.next
	}

	if self != nil && !self.IsSticky() {
		yieldSelf(rt, self, true)
	}
	return nil
}

// Sync joins on task, returning its result (or its reduction result, for a
// grain parent) once task reaches a terminal state. Returns (nil, nil) for
// a task that has never been started or is detached - there is nothing to
// join on - and ErrInvalidTask for a nil task.
func Sync(rt *Runtime, self *Task, task *Task) (any, error) {
	if task == nil {
		return nil, ErrInvalidTask
	}
	if !task.started.Load() || task.IsDetached() {
		return nil, nil
	}

	if !task.isSettled() {
		if self == nil {
			// No fiber to suspend and resume - block the calling OS
			// goroutine directly instead of threading a nil waiter through
			// the completion queue.
			<-task.settledCh
		} else {
			task.cq.mu.Lock()
			if task.isSettled() {
				task.cq.mu.Unlock()
			} else {
				task.cq.appendLocked(self)
				task.cq.mu.Unlock()
				yieldSelf(rt, self, false)
			}
		}
	}

	if task.IsGrain() && task.reduceFn != nil {
		return task.redResult, task.Exception
	}
	return task.result, task.Exception
}

// Yield suspends self, optionally re-enqueueing it, and returns once some
// worker resumes it.
func Yield(rt *Runtime, self *Task, requeue bool) {
	yieldSelf(rt, self, requeue)
}

func currentWorkerID(self *Task) int {
	if self != nil && self.worker != nil {
		return self.worker.id
	}
	return 0
}
