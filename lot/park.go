package lot

import (
	"time"

	"github.com/I3ck/parking-lot/parker"
)

// Park implements spec.md §4.4's park operation.
//
// validate is called under the bucket lock immediately after it is
// acquired; if it returns false, Park unlocks and returns false without
// ever enqueuing a record — this is what closes the race between a
// primitive's slow-path decision and taking the bucket lock.
//
// beforeSleep, if non-nil, runs after the record is queued and the bucket
// is unlocked, but before the goroutine actually blocks — condvar's
// notify-after-enqueue trick (spec.md §4.5/§4.6) depends on this ordering.
//
// timedOut, if non-nil, is called under the bucket lock only when deadline
// elapses and this record is still queued (i.e. not racing a concurrent
// unpark); it receives the key the record was queued on when it timed out
// (key, or the key a requeue moved it to) and whether this was the last
// queued record for that key.
//
// A zero deadline (deadline.IsZero()) means block with no timeout.
func Park(key Key, validate func() bool, beforeSleep func(), timedOut func(key Key, wasLastThread bool), deadline time.Time) bool {
	b := lockBucket(key)
	if validate != nil && !validate() {
		b.lock.Unlock()
		return false
	}

	rec := &Record{key: key, pk: parker.New()}
	rec.pk.PrepareSignal()
	b.enqueue(rec)
	b.lock.Unlock()

	enterParked()
	defer exitParked()

	if beforeSleep != nil {
		beforeSleep()
	}

	if deadline.IsZero() {
		rec.pk.Park()
		return true
	}
	if rec.pk.ParkUntil(deadline) {
		return true
	}

	// The deadline elapsed. Re-lock this record's current bucket (it may
	// have moved under a resize, or to another key under a requeue) and
	// find out whether we're racing a concurrent unparker.
	k := key
	b2 := lockBucket(k)
	for rec.key != k {
		k = rec.key
		b2.lock.Unlock()
		b2 = lockBucket(k)
	}
	if b2.removeExact(rec) {
		wasLast := !b2.hasAny(k)
		b2.lock.Unlock()
		if timedOut != nil {
			timedOut(k, wasLast)
		}
		return false
	}
	b2.lock.Unlock()

	// Already unlinked by a concurrent unpark; its signal is in flight.
	rec.pk.Park()
	return true
}

// ParkWithDeadline is a convenience wrapper for callers that want to
// express "block until woken, bounded by duration" rather than an absolute
// time.Time deadline.
func ParkWithDeadline(key Key, validate func() bool, beforeSleep func(), timedOut func(key Key, wasLastThread bool), timeout time.Duration) bool {
	return Park(key, validate, beforeSleep, timedOut, time.Now().Add(timeout))
}
