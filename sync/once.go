package sync

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/I3ck/parking-lot/lot"
)

const (
	onceNotStarted uint32 = iota
	onceRunning
	onceDone
)

// Once is a three-state state machine (not-started / running / done) built
// over package lot, mirroring the standard library's sync.Once but waking
// waiters through Park/UnparkAll instead of a runtime-internal semaphore.
type Once struct {
	state uint32
}

func (o *Once) key() lot.Key {
	return lot.KeyOf(unsafe.Pointer(&o.state))
}

// Do calls f if and only if Do is being called for the first time for this
// instance of Once. Every other caller blocks until that first call to f
// returns, exactly as the standard library's sync.Once.Do documents.
func (o *Once) Do(f func()) {
	if atomic.LoadUint32(&o.state) == onceDone {
		return
	}
	o.doSlow(f)
}

func (o *Once) doSlow(f func()) {
	if !atomic.CompareAndSwapUint32(&o.state, onceNotStarted, onceRunning) {
		for atomic.LoadUint32(&o.state) == onceRunning {
			lot.Park(o.key(), func() bool {
				return atomic.LoadUint32(&o.state) == onceRunning
			}, nil, nil, time.Time{})
		}
		return
	}

	defer func() {
		atomic.StoreUint32(&o.state, onceDone)
		lot.UnparkAll(o.key())
	}()
	f()
}
