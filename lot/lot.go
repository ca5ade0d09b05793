// Package lot implements the parking lot itself: a process-wide, sharded
// hash table keyed by arbitrary caller-chosen addresses, each bucket owning
// a FIFO queue of parked goroutine records, with the four public parking
// primitives (Park, UnparkOne, UnparkAll, UnparkRequeue) built on top.
//
// This is the hard part spec.md §1 calls out: the bolt-on primitives in the
// sibling sync package are thin state machines that delegate here whenever
// they must block or wake another goroutine.
//
// Grounded in the teacher's experimental/futex package: a fixed array of
// buckets selected by a Thomas Wang-style shift/add/xor integer hash of the
// key, each protected by its own lock and holding an intrusive FIFO of
// waiters, generalized here to match spec.md's exact contract (validate,
// before_sleep, timed_out hooks; UnparkResult; requeue).
//
// Go has no portable thread-local storage and no thread-exit hook, so
// "thread record" in spec.md's sense becomes a plain value created fresh by
// each call to Park and kept alive only by that call's own stack frame —
// there is no pool, no registry, and no destructor to write: the record's
// lifetime is exactly the Park call's lifetime, which is what spec.md's
// lifecycle section asks for, just expressed through goroutine-frame
// liveness rather than a TLS destructor.
package lot

import (
	"sync/atomic"
	"unsafe"

	"github.com/I3ck/parking-lot/internal/config"
	"github.com/I3ck/parking-lot/parker"
	"github.com/I3ck/parking-lot/primitive"
	"github.com/I3ck/parking-lot/wordlock"
)

// Key identifies a queue in the parking lot. By convention it is the
// address of the caller's own atomic word, reinterpreted as a uintptr; the
// parking lot only ever hashes it and compares it for equality.
type Key uintptr

// KeyOf is a convenience for the common case of keying on the address of a
// word a primitive already owns.
func KeyOf(p unsafe.Pointer) Key {
	return Key(uintptr(p))
}

// Record is a single queued waiter. Exactly one exists per live Park call;
// it is created by Park, linked into one bucket's FIFO for the duration of
// that call, and never touched again once Park returns.
type Record struct {
	key  Key
	next *Record
	pk   *parker.Parker
	// Token is scratch space an unparker may use to pass a value to the
	// parking goroutine alongside the wakeup, per spec.md §3's
	// "unpark_token" field. lot itself never reads or writes it.
	Token uintptr
}

type bucket struct {
	lock     wordlock.Lock
	head     *Record
	tail     *Record
	nonempty atomic.Bool
}

func (b *bucket) enqueue(r *Record) {
	r.next = nil
	if b.tail == nil {
		b.head = r
	} else {
		b.tail.next = r
	}
	b.tail = r
	b.nonempty.Store(true)
}

// removeExact unlinks a specific record (by identity), used by the Park
// timeout path where only this exact record matters, not "first match".
func (b *bucket) removeExact(rec *Record) bool {
	var prev *Record
	for r := b.head; r != nil; r = r.next {
		if r == rec {
			b.unlink(prev, r)
			return true
		}
		prev = r
	}
	return false
}

// removeFirst unlinks and returns the first record queued for key, or nil.
func (b *bucket) removeFirst(key Key) *Record {
	var prev *Record
	for r := b.head; r != nil; r = r.next {
		if r.key == key {
			b.unlink(prev, r)
			return r
		}
		prev = r
	}
	return nil
}

func (b *bucket) unlink(prev, r *Record) {
	if prev == nil {
		b.head = r.next
	} else {
		prev.next = r.next
	}
	if r == b.tail {
		b.tail = prev
	}
	r.next = nil
	if b.head == nil {
		b.nonempty.Store(false)
	}
}

// hasAny reports whether any queued record matches key.
func (b *bucket) hasAny(key Key) bool {
	for r := b.head; r != nil; r = r.next {
		if r.key == key {
			return true
		}
	}
	return false
}

// removeAll splits out every record matching key into its own sub-chain
// (original relative order preserved), relinking the rest of the bucket's
// chain around the gaps. Returns the head of the removed sub-chain and how
// many records it holds.
func (b *bucket) removeAll(key Key) (removedHead *Record, count int) {
	var newHead, newTail *Record
	var remHead, remTail *Record
	for r := b.head; r != nil; {
		next := r.next
		r.next = nil
		if r.key == key {
			count++
			if remHead == nil {
				remHead = r
			} else {
				remTail.next = r
			}
			remTail = r
		} else {
			if newHead == nil {
				newHead = r
			} else {
				newTail.next = r
			}
			newTail = r
		}
		r = next
	}
	b.head, b.tail = newHead, newTail
	if b.head == nil {
		b.nonempty.Store(false)
	}
	return remHead, count
}

// relinkFront splices chain (in its existing order) onto the front of the
// bucket. Used to put records back after an aborted requeue or a plain
// UnparkOne requeue op that leaves the rest of the queue untouched.
func (b *bucket) relinkFront(chainHead *Record) {
	if chainHead == nil {
		return
	}
	tail := chainHead
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = b.head
	b.head = chainHead
	if b.tail == nil {
		b.tail = tail
	}
	b.nonempty.Store(true)
}

// spliceTail appends chain (in its existing order) to the end of the
// bucket, used when requeueing waiters onto a destination queue.
func (b *bucket) spliceTail(chainHead, chainTail *Record) {
	if chainHead == nil {
		return
	}
	if b.tail == nil {
		b.head = chainHead
	} else {
		b.tail.next = chainHead
	}
	b.tail = chainTail
	b.nonempty.Store(true)
}

type table struct {
	buckets []bucket
	mask    uintptr
}

func newTable(n int) *table {
	n = int(primitive.Next2(uintptr(n)))
	return &table{buckets: make([]bucket, n), mask: uintptr(n - 1)}
}

// hashKey mixes every bit of the key into the bucket-index space using
// Thomas Wang's 64-bit shift/add/xor integer hash, the same mix the
// teacher's futex bucket table uses (experimental/futex/futex.go's twhash).
func hashKey(k Key) uintptr {
	h := uint64(k)
	h = (^h) + (h << 21)
	h = h ^ (h >> 24)
	h = h + (h << 3) + (h << 8)
	h = h ^ (h >> 14)
	h = h + (h << 2) + (h << 4)
	h = h ^ (h >> 28)
	h = h + (h << 31)
	return uintptr(h)
}

func bucketFor(t *table, key Key) *bucket {
	return &t.buckets[hashKey(key)&t.mask]
}

var (
	tblPtr      atomic.Pointer[table]
	liveParked  atomic.Int64
	resizeMu    wordlock.Lock
	resizeCount atomic.Int64
)

func init() {
	tblPtr.Store(newTable(config.InitialBuckets))
}

// lockBucket locates and locks the bucket for key, re-checking the table
// pointer after acquiring the lock and retrying on a detected resize, per
// spec.md §4.3's swap-detection requirement.
func lockBucket(key Key) *bucket {
	for {
		t := tblPtr.Load()
		b := bucketFor(t, key)
		b.lock.Lock()
		if tblPtr.Load() == t {
			return b
		}
		b.lock.Unlock()
	}
}

// lockBucketPair locks the buckets for keyFrom and keyTo in address order
// to prevent deadlock against a concurrent reverse requeue, re-checking the
// table pointer after both locks are held.
func lockBucketPair(keyFrom, keyTo Key) (from, to *bucket) {
	for {
		t := tblPtr.Load()
		fb := bucketFor(t, keyFrom)
		tb := bucketFor(t, keyTo)
		if fb == tb {
			fb.lock.Lock()
			if tblPtr.Load() != t {
				fb.lock.Unlock()
				continue
			}
			return fb, fb
		}
		first, second := fb, tb
		if uintptr(unsafe.Pointer(fb)) > uintptr(unsafe.Pointer(tb)) {
			first, second = tb, fb
		}
		first.lock.Lock()
		second.lock.Lock()
		if tblPtr.Load() != t {
			second.lock.Unlock()
			first.lock.Unlock()
			continue
		}
		return fb, tb
	}
}

// enterParked accounts for one more concurrently-parked goroutine and, if
// that pushes the live count past the load factor, triggers a resize. In a
// goroutine model there is no "thread registration" event distinct from
// actually parking, so this is where spec.md §4.3's "when a new thread is
// registered" trigger is adapted to fire.
func enterParked() {
	n := liveParked.Add(1)
	t := tblPtr.Load()
	if n > int64(len(t.buckets))/int64(config.LoadFactorDen) {
		growFrom(t)
	}
}

func exitParked() {
	liveParked.Add(-1)
}

// growFrom doubles the table, migrating every bucket's queue, then publishes
// the new table pointer. A record's hash is stable across resizes, so all
// records sharing a key always land in the exact same new bucket, which
// keeps per-key FIFO order intact without needing any cross-bucket merge
// logic.
//
// Every old bucket's lock is held across both the migration and the tblPtr
// swap, never released bucket-by-bucket as each is migrated. Releasing a
// bucket's lock before the swap would let a concurrent lockBucket lock that
// already-migrated bucket, recheck tblPtr while it still points at the old
// table, pass the recheck, and enqueue a record into a bucket nobody will
// ever scan again. Holding every old bucket's lock until after the swap
// closes that window: a concurrent lockBucket either locks an old bucket
// before growFrom reaches it (blocking until migration and the swap are
// both done, then retrying against the new table), or locks it after
// everything here has already unlocked, by which point tblPtr has already
// swapped and the recheck correctly fails.
func growFrom(observed *table) {
	resizeMu.Lock()
	defer resizeMu.Unlock()
	if tblPtr.Load() != observed {
		// Someone already resized (or grew further) since we decided to;
		// skip rather than resize twice for one load spike.
		return
	}

	for i := range observed.buckets {
		observed.buckets[i].lock.Lock()
	}

	nt := newTable(len(observed.buckets) * 2)
	for i := range observed.buckets {
		ob := &observed.buckets[i]
		for r := ob.head; r != nil; {
			next := r.next
			nb := bucketFor(nt, r.key)
			nb.enqueue(r)
			r = next
		}
		ob.head, ob.tail = nil, nil
		ob.nonempty.Store(false)
	}

	tblPtr.Store(nt)
	resizeCount.Add(1)

	for i := range observed.buckets {
		observed.buckets[i].lock.Unlock()
	}
}

// Stats reports a snapshot of the parking lot's internal state: the
// current bucket count, the number of goroutines currently parked, and how
// many times the table has grown. Useful for tests and the stress CLI to
// assert "no leaked records" (spec.md §8 scenario 5).
func Stats() (buckets int, liveGoroutines int64, resizes int64) {
	t := tblPtr.Load()
	return len(t.buckets), liveParked.Load(), resizeCount.Load()
}
