package core

import (
	"sync"
	"sync/atomic"
)

// Condition is a one-shot latch: once Notify is called, notify is never
// cleared and every subsequent Wait returns immediately. It has no
// relation to a specific task; any number of fibers may wait on it.
type Condition struct {
	notify atomic.Bool
	waitq  completionQueue

	notifyOnce sync.Once
	notifiedCh chan struct{}
}

// NewCondition returns a fresh, unnotified condition.
func NewCondition() *Condition {
	return &Condition{notifiedCh: make(chan struct{})}
}

// Wait blocks self until c is notified. If c is already notified, it
// returns immediately without suspending. self may be nil when called from
// outside any fiber (the host goroutine), in which case it blocks the
// calling OS goroutine directly rather than threading a nil waiter through
// the wait-queue.
func Wait(rt *Runtime, self *Task, c *Condition) {
	if c.notify.Load() {
		return
	}

	if self == nil {
		<-c.notifiedCh
		return
	}

	c.waitq.mu.Lock()
	if c.notify.Load() {
		c.waitq.mu.Unlock()
		return
	}
	c.waitq.appendLocked(self)
	c.waitq.mu.Unlock()

	yieldSelf(rt, self, false)
}

// Notify sets c's latch and wakes every current waiter exactly once, in
// the order they called Wait. Calling Notify more than once is harmless -
// the flag is monotone and later calls find an already-empty wait-queue.
func Notify(rt *Runtime, c *Condition) {
	c.notify.Store(true)
	c.notifyOnce.Do(func() { close(c.notifiedCh) })

	waiter := c.waitq.drain()
	for waiter != nil {
		next := waiter.next
		waiter.next = nil
		rt.enqueueWithRetry(waiter, "condition-notify")
		waiter = next
	}
}
