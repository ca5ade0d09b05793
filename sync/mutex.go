// Package sync provides Mutex, RWMutex, Cond, and Once: small atomic-word
// state machines that implement their own fast paths and delegate to
// package lot whenever they must block or wake another goroutine, per
// spec.md §4.5/§4.6.
//
// These mirror the shape of the teacher's block.Block (an atomic word,
// a CAS retry loop, a callback-under-lock style unlock) generalized from
// one bespoke reader/writer spinlock into the specific state machines
// spec.md specifies.
package sync

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/I3ck/parking-lot/lot"
	"github.com/I3ck/parking-lot/primitive"
	"github.com/I3ck/parking-lot/spin"

	"github.com/I3ck/parking-lot/internal/config"
)

const (
	mutexLocked uint32 = 1 << iota
	mutexParked
)

// Mutex is a mutual exclusion lock built directly over package lot, per
// spec.md §4.5. The zero value is an unlocked mutex. It implements
// sync.Locker so it drops into anything that expects the standard
// library's interface, same as the teacher's internal lock type does for
// use with sync.Cond.
type Mutex struct {
	state uint32
}

func (m *Mutex) key() lot.Key {
	return lot.KeyOf(unsafe.Pointer(&m.state))
}

// Lock acquires the mutex, blocking until it is available.
func (m *Mutex) Lock() {
	if atomic.CompareAndSwapUint32(&m.state, 0, mutexLocked) {
		return
	}
	m.lockSlow()
}

func (m *Mutex) lockSlow() {
	var bo spin.Backoff
	for {
		s := atomic.LoadUint32(&m.state)
		if s&mutexLocked == 0 {
			if _, swapped := primitive.CompareAndSwapUint32(&m.state, s, s|mutexLocked); swapped {
				return
			}
			continue
		}
		if !bo.Spin(config.MutexSpins) {
			continue
		}

		// Ensure the parked bit is set before we enqueue, so Unlock
		// knows to look for us.
		for {
			s = atomic.LoadUint32(&m.state)
			if s&mutexParked != 0 {
				break
			}
			if _, swapped := primitive.CompareAndSwapUint32(&m.state, s, s|mutexParked); swapped {
				break
			}
		}

		lot.Park(m.key(), func() bool {
			cur := atomic.LoadUint32(&m.state)
			return cur == mutexLocked|mutexParked
		}, nil, nil, time.Time{})
		bo.Reset()
	}
}

// Unlock releases the mutex. It is a programmer error to call Unlock on an
// unlocked Mutex.
func (m *Mutex) Unlock() {
	// CAS, not an unconditional store: a waiter may have set the parked
	// bit concurrently with us reaching here, and an unconditional store
	// would silently drop that bit and strand the waiter. Only a mutex
	// with exactly {LOCKED} and nothing else is truly uncontended.
	if atomic.CompareAndSwapUint32(&m.state, mutexLocked, 0) {
		return
	}
	m.unlockSlow()
}

func (m *Mutex) unlockSlow() {
	lot.UnparkOne(m.key(), func(r lot.UnparkResult) {
		var newState uint32
		if r.HaveMoreThreads {
			newState = mutexParked
		}
		atomic.StoreUint32(&m.state, newState)
	})
}

// isLocked reports whether m is currently held. Used by Cond.Signal to
// decide between requeueing waiters onto m's queue and waking one
// directly.
func (m *Mutex) isLocked() bool {
	return atomic.LoadUint32(&m.state)&mutexLocked != 0
}

// TryLock acquires the mutex without blocking, reporting whether it
// succeeded.
func (m *Mutex) TryLock() bool {
	for {
		s := atomic.LoadUint32(&m.state)
		if s&mutexLocked != 0 {
			return false
		}
		if _, swapped := primitive.CompareAndSwapUint32(&m.state, s, s|mutexLocked); swapped {
			return true
		}
	}
}
