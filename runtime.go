package partr

import (
	"github.com/elizabethhannan/partr/core"
)

// Re-exports of the core package's public surface, so a caller that only
// needs the common path can import the root package alone - mirroring the
// teacher's root-level re-export of its core package's constructors.

type (
	Runtime        = core.Runtime
	RuntimeConfig  = core.RuntimeConfig
	Task           = core.Task
	TaskID         = core.TaskID
	TaskState      = core.TaskState
	Callable       = core.Callable
	ReduceFunc     = core.ReduceFunc
	Condition      = core.Condition
	Logger         = core.Logger
	Field          = core.Field
	Metrics        = core.Metrics
	PanicHandler   = core.PanicHandler
	RuntimeStats   = core.RuntimeStats
	WorkerStats    = core.WorkerStats
)

const (
	StateRunnable = core.StateRunnable
	StateDone     = core.StateDone
	StateFailed   = core.StateFailed
)

// NewRuntime allocates a Runtime from cfg (or a default sized to
// GOMAXPROCS if cfg is nil) without starting any workers.
func NewRuntime(cfg *RuntimeConfig) *Runtime {
	return core.NewRuntime(cfg)
}

// DefaultRuntimeConfig returns the spec-default configuration for w
// workers.
func DefaultRuntimeConfig(w int) *RuntimeConfig {
	return core.DefaultRuntimeConfig(w)
}

// Spawn, Sync, SpawnMulti, Yield, NewCondition, and core's Wait and Notify
// (as WaitCondition and NotifyCondition) are re-exported as
// package functions so callers outside a fiber (the host goroutine
// kicking off the first task) don't need to reach into core directly.
func Spawn(rt *Runtime, self *Task, task *Task, sticky, detach bool) error {
	return core.Spawn(rt, self, task, sticky, detach)
}

func SpawnMulti(rt *Runtime, self *Task, parent *Task) error {
	return core.SpawnMulti(rt, self, parent)
}

func Sync(rt *Runtime, self *Task, task *Task) (any, error) {
	return core.Sync(rt, self, task)
}

func Yield(rt *Runtime, self *Task, requeue bool) {
	core.Yield(rt, self, requeue)
}

func NewCondition() *Condition {
	return core.NewCondition()
}

func WaitCondition(rt *Runtime, self *Task, c *Condition) {
	core.Wait(rt, self, c)
}

func NotifyCondition(rt *Runtime, c *Condition) {
	core.Notify(rt, c)
}
