package sync

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/I3ck/parking-lot/lot"
	"github.com/I3ck/parking-lot/primitive"
)

// Cond implements a condition variable over package lot, per spec.md §4.6.
// Like the standard library's sync.Cond, a Cond must not be copied after
// first use and Wait must be called with L held.
//
// Signal's validate callback follows spec.md's condvar example literally:
// if L is a *Mutex and it is currently locked, every waiter is requeued
// onto the mutex's own wait queue (moved, not woken) rather than woken only
// to immediately re-block trying to reacquire the mutex; otherwise the
// first waiter is woken directly. Requeueing all waiters instead of
// exactly one is spec.md's stated behavior for this callback, not an
// independent design choice.
type Cond struct {
	L Locker

	// noCopy is embedded by value so go vet flags accidental copies.
	noCopy noCopy
}

// NewCond returns a new Cond with Locker l.
func NewCond(l Locker) *Cond {
	return &Cond{L: l}
}

func (c *Cond) key() lot.Key {
	return lot.KeyOf(unsafe.Pointer(c))
}

// Wait atomically unlocks c.L and suspends the calling goroutine. After
// later resuming execution, Wait locks c.L before returning.
func (c *Cond) Wait() {
	lot.Park(c.key(), func() bool { return true }, func() {
		c.L.Unlock()
	}, nil, time.Time{})
	c.L.Lock()
}

// Signal wakes one goroutine waiting on c, if any.
func (c *Cond) Signal() {
	if m, ok := c.L.(*Mutex); ok {
		c.signalWithMutex(m)
		return
	}
	lot.UnparkOne(c.key(), nil)
}

func (c *Cond) signalWithMutex(m *Mutex) {
	lot.UnparkRequeue(c.key(), m.key(), func() lot.RequeueOp {
		if m.isLocked() {
			return lot.OpRequeueAll
		}
		return lot.OpUnparkOne
	}, markMutexParkedIfRequeued(m))
}

// Broadcast wakes all goroutines waiting on c.
func (c *Cond) Broadcast() {
	if m, ok := c.L.(*Mutex); ok {
		lot.UnparkRequeue(c.key(), m.key(), func() lot.RequeueOp {
			return lot.OpRequeueAll
		}, markMutexParkedIfRequeued(m))
		return
	}
	lot.UnparkAll(c.key())
}

// markMutexParkedIfRequeued returns an UnparkRequeue callback that sets the
// mutex's parked bit whenever at least one waiter was moved onto its queue.
// Without this, a mutex released through its fast-path Unlock (a plain CAS
// from locked to 0) never looks at its lot bucket at all, and every waiter
// requeued here by a condvar would be stranded forever.
func markMutexParkedIfRequeued(m *Mutex) func(op lot.RequeueOp, count int) {
	return func(op lot.RequeueOp, count int) {
		if count == 0 {
			return
		}
		if op != lot.OpRequeueAll && op != lot.OpUnparkOneRequeueRest {
			return
		}
		for {
			s := atomic.LoadUint32(&m.state)
			if s&mutexParked != 0 {
				return
			}
			if _, swapped := primitive.CompareAndSwapUint32(&m.state, s, s|mutexParked); swapped {
				return
			}
		}
	}
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
