// Package partr provides a work-stealing-like parallel task runtime: a
// randomized priority multiqueue, sync-tree barriers with pairwise
// reduction for data-parallel fan-out, and cooperatively-scheduled fibers
// realized as goroutines.
//
// # Quick Start
//
// Build a runtime and start its workers:
//
//	rt := core.NewRuntime(core.DefaultRuntimeConfig(8))
//	ctx, cancel := context.WithCancel(context.Background())
//	rt.Start(ctx)
//	defer func() { cancel(); rt.Wait() }()
//
// Spawn a task and join on it:
//
//	t, _ := rt.NewTask("add-one", func(rt *core.Runtime, self *core.Task) (any, error) {
//		return self.Args.(int) + 1, nil
//	}, 41)
//	core.Spawn(rt, nil, t, false, false)
//	v, _ := core.Sync(rt, nil, t) // v == 42 if a worker has started t, else nil
//
// Sync returns (nil, nil) for a task that no worker has started yet, so a
// host goroutine that calls it right after Spawn can see nil.
//
// Run a data-parallel reduction across GrainK*Workers grains:
//
//	p, _ := rt.NewMultiTask("sum", func(rt *core.Runtime, self *core.Task) (any, error) {
//		total := 0
//		for i := self.Start; i < self.End; i++ {
//			total += i
//		}
//		return total, nil
//	}, 1000, func(a, b any) any { return a.(int) + b.(int) })
//	core.SpawnMulti(rt, nil, p)
//	sum, _ := core.Sync(rt, nil, p) // sum == 499500 if a worker has started p, else nil
//
// # Key concepts
//
// Runtime is the explicit handle threading every primitive together -
// there is no package-level global scheduler state. Task is the unit of
// schedulable work; its fiber is a dedicated goroutine parked on a channel
// rather than a hand-rolled stackful coroutine, since a goroutine already
// is one. Multiqueue is the randomized, lock-striped priority queue
// workers sample from; sticky tasks bypass it after their first dispatch,
// pinned to one worker's own FIFO instead.
//
// # Observability
//
// core.Runtime.Stats returns a point-in-time snapshot of worker and heap
// occupancy plus recently completed tasks. The observability/prometheus
// subpackage adapts core.Metrics to Prometheus collectors for long-running
// processes.
package partr
