package sync

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/I3ck/parking-lot/internal/config"
	"github.com/I3ck/parking-lot/lot"
	"github.com/I3ck/parking-lot/primitive"
	"github.com/I3ck/parking-lot/spin"
)

const (
	rwWriter uint32 = 1 << iota
	rwWriterParked
	rwReadersParked
	rwReaderShift = 3
	rwReaderOne   = 1 << rwReaderShift
)

// Locker mirrors the standard library's sync.Locker, so Mutex, RWMutex and
// the locker returned by RLocker all satisfy it.
type Locker interface {
	Lock()
	Unlock()
}

// RWMutex is a reader/writer lock packing the reader count and the
// writer/writer-parked/readers-parked bits into one word, per spec.md
// §4.6. Readers and writers park on two distinct keys (the word's address
// for writers, the address offset by one for readers) so UnparkOne/
// UnparkAll can target one side independently, exactly as spec.md
// describes.
type RWMutex struct {
	state uint32
}

func (rw *RWMutex) writerKey() lot.Key {
	return lot.KeyOf(unsafe.Pointer(&rw.state))
}

func (rw *RWMutex) readerKey() lot.Key {
	return lot.Key(uintptr(unsafe.Pointer(&rw.state)) + 1)
}

// Lock acquires the write lock, blocking until no readers or writer hold
// it.
func (rw *RWMutex) Lock() {
	if atomic.CompareAndSwapUint32(&rw.state, 0, rwWriter) {
		return
	}
	rw.lockSlow()
}

func (rw *RWMutex) lockSlow() {
	var bo spin.Backoff
	for {
		s := atomic.LoadUint32(&rw.state)
		if s&^(rwWriterParked|rwReadersParked) == 0 {
			if _, swapped := primitive.CompareAndSwapUint32(&rw.state, s, s|rwWriter); swapped {
				return
			}
			continue
		}
		if !bo.Spin(config.MutexSpins) {
			continue
		}
		for {
			s = atomic.LoadUint32(&rw.state)
			if s&rwWriterParked != 0 {
				break
			}
			if _, swapped := primitive.CompareAndSwapUint32(&rw.state, s, s|rwWriterParked); swapped {
				break
			}
		}
		lot.Park(rw.writerKey(), func() bool {
			cur := atomic.LoadUint32(&rw.state)
			return cur&^(rwWriterParked|rwReadersParked) != 0 && cur&rwWriterParked != 0
		}, nil, nil, time.Time{})
		bo.Reset()
	}
}

// Unlock releases the write lock.
func (rw *RWMutex) Unlock() {
	if atomic.CompareAndSwapUint32(&rw.state, rwWriter, 0) {
		return
	}
	rw.unlockSlow()
}

func (rw *RWMutex) unlockSlow() {
	s := atomic.LoadUint32(&rw.state)
	if s&rwWriterParked != 0 {
		var wakeReaders bool
		lot.UnparkOne(rw.writerKey(), func(r lot.UnparkResult) {
			var newS uint32
			if r.Unparked {
				// The woken writer retries the acquire itself, so the writer
				// bit is released rather than handed over; parked readers
				// keep their bit so the next Unlock still wakes them.
				newS = atomic.LoadUint32(&rw.state) & rwReadersParked
				if r.HaveMoreThreads {
					newS |= rwWriterParked
				}
			} else if atomic.LoadUint32(&rw.state)&rwReadersParked != 0 {
				// No writer was actually queued (a stale parked bit from a
				// validate race): hand the lock to the waiting readers
				// instead of stranding them, outside this callback since
				// the reader key may hash to the same bucket we're
				// holding locked right now.
				wakeReaders = true
			}
			atomic.StoreUint32(&rw.state, newS)
		})
		if wakeReaders {
			lot.UnparkAll(rw.readerKey())
		}
		return
	}
	if s&rwReadersParked != 0 {
		for {
			old := atomic.LoadUint32(&rw.state)
			newS := old &^ (rwWriter | rwReadersParked)
			if _, swapped := primitive.CompareAndSwapUint32(&rw.state, old, newS); swapped {
				break
			}
		}
		lot.UnparkAll(rw.readerKey())
		return
	}
	atomic.StoreUint32(&rw.state, 0)
}

// RLock acquires a read lock, blocking while a writer holds or is waiting
// for the lock (writers are never starved by a steady stream of readers).
func (rw *RWMutex) RLock() {
	for {
		s := atomic.LoadUint32(&rw.state)
		if s&(rwWriter|rwWriterParked) != 0 {
			break
		}
		if _, swapped := primitive.CompareAndSwapUint32(&rw.state, s, s+rwReaderOne); swapped {
			return
		}
	}
	rw.rlockSlow()
}

func (rw *RWMutex) rlockSlow() {
	var bo spin.Backoff
	for {
		s := atomic.LoadUint32(&rw.state)
		if s&(rwWriter|rwWriterParked) == 0 {
			if _, swapped := primitive.CompareAndSwapUint32(&rw.state, s, s+rwReaderOne); swapped {
				return
			}
			continue
		}
		if !bo.Spin(config.MutexSpins) {
			continue
		}
		for {
			s = atomic.LoadUint32(&rw.state)
			if s&rwReadersParked != 0 {
				break
			}
			if _, swapped := primitive.CompareAndSwapUint32(&rw.state, s, s|rwReadersParked); swapped {
				break
			}
		}
		lot.Park(rw.readerKey(), func() bool {
			cur := atomic.LoadUint32(&rw.state)
			return cur&(rwWriter|rwWriterParked) != 0 && cur&rwReadersParked != 0
		}, nil, nil, time.Time{})
		bo.Reset()
	}
}

// RUnlock releases a read lock.
func (rw *RWMutex) RUnlock() {
	for {
		s := atomic.LoadUint32(&rw.state)
		newS := s - rwReaderOne
		if _, swapped := primitive.CompareAndSwapUint32(&rw.state, s, newS); swapped {
			if newS&^(rwWriterParked|rwReadersParked) == 0 && newS&rwWriterParked != 0 {
				rw.wakeWriterAfterLastReader()
			}
			return
		}
	}
}

func (rw *RWMutex) wakeWriterAfterLastReader() {
	var wakeReaders bool
	lot.UnparkOne(rw.writerKey(), func(r lot.UnparkResult) {
		var newS uint32
		if r.Unparked {
			// As in unlockSlow: the woken writer acquires the lock itself.
			newS = atomic.LoadUint32(&rw.state) & rwReadersParked
			if r.HaveMoreThreads {
				newS |= rwWriterParked
			}
		} else if atomic.LoadUint32(&rw.state)&rwReadersParked != 0 {
			wakeReaders = true
		}
		atomic.StoreUint32(&rw.state, newS)
	})
	if wakeReaders {
		lot.UnparkAll(rw.readerKey())
	}
}

// RLocker returns a Locker interface that calls RLock/RUnlock.
func (rw *RWMutex) RLocker() Locker {
	return (*rlocker)(rw)
}

type rlocker RWMutex

func (r *rlocker) Lock()   { (*RWMutex)(r).RLock() }
func (r *rlocker) Unlock() { (*RWMutex)(r).RUnlock() }
