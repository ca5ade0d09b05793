// Package parker implements the thread parker described in spec.md §4.1: a
// per-goroutine one-shot blocking primitive with timeout.
//
// A Parker is good for exactly one prepare/park/signal episode; callers
// that park repeatedly on the same record call PrepareSignal again before
// each new episode, mirroring spec.md's "prepare_park() resets to
// unsignaled" contract.
//
// This is grounded in the teacher's experimental/futex.Futex.Wait/Wake: one
// mutex, one condition variable, one boolean flag, no channel allocation
// per park. Unlike a raw OS futex, sync.Cond cannot itself race a deadline,
// so ParkUntil arms a timer that broadcasts the condition variable; the
// signaled flag (checked under the same mutex the timer locks) is what
// lets a real Signal win a race against an expiring deadline, per spec.md
// §4.1's "if a signal and the deadline race, the signal wins".
package parker

import (
	"sync"
	"time"
)

// Parker is a per-goroutine one-shot blocking primitive.
type Parker struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled bool
}

// New returns a ready-to-use Parker.
func New() *Parker {
	p := &Parker{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// PrepareSignal resets the parker to unsignaled. Call this before
// publishing the parker into a queue, per spec.md §4.1.
func (p *Parker) PrepareSignal() {
	p.mu.Lock()
	p.signaled = false
	p.mu.Unlock()
}

// Park blocks until Signal is called. It is safe to call Park without
// a prior PrepareSignal only for a fresh Parker; reused parkers must call
// PrepareSignal first or Park may return immediately on a stale signal.
func (p *Parker) Park() {
	p.mu.Lock()
	for !p.signaled {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

// ParkUntil blocks until Signal is called or deadline elapses, whichever
// comes first; it reports true if woken by Signal, false on timeout. A
// Signal that arrives concurrently with the deadline elapsing always wins.
func (p *Parker) ParkUntil(deadline time.Time) (woken bool) {
	timer := time.AfterFunc(time.Until(deadline), func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.signaled {
		if !time.Now().Before(deadline) {
			return false
		}
		p.cond.Wait()
	}
	return true
}

// Signal wakes the parker. Safe to call exactly once per prepare/park
// episode, from any goroutine; calling it with no goroutine parked yet is
// fine — the next Park/ParkUntil call will observe the signaled flag and
// return immediately, which is what lets a timed-out-but-already-unparked
// race (spec.md §4.4 step 8) resolve correctly.
func (p *Parker) Signal() {
	p.mu.Lock()
	p.signaled = true
	p.mu.Unlock()
	p.cond.Signal()
}
