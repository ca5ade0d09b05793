package lot

// UnparkResult reports what UnparkOne observed while holding the bucket
// lock: whether a waiter was found for the key, and whether any others
// remain queued for that same key afterward.
type UnparkResult struct {
	Unparked        bool
	HaveMoreThreads bool
}

// UnparkOne implements spec.md §4.4's unpark_one: it wakes at most one
// waiter queued for key, in FIFO order.
//
// callback, if non-nil, runs under the bucket lock with the result already
// computed — primitives use this to flip their own atomic word atomically
// with the dequeue, e.g. clearing a "has parked waiters" bit iff
// HaveMoreThreads is false. UnparkOne returns the same UnparkResult the
// callback saw.
func UnparkOne(key Key, callback func(UnparkResult)) UnparkResult {
	b := lockBucket(key)
	rec := b.removeFirst(key)
	result := UnparkResult{Unparked: rec != nil}
	if rec != nil {
		result.HaveMoreThreads = b.hasAny(key)
	}
	if callback != nil {
		callback(result)
	}
	b.lock.Unlock()

	if rec != nil {
		rec.pk.Signal()
	}
	return result
}

// UnparkAll implements spec.md §4.4's unpark_all: it wakes every waiter
// queued for key, signaling them in FIFO enqueue order, and returns how
// many were woken.
func UnparkAll(key Key) int {
	b := lockBucket(key)
	head, count := b.removeAll(key)
	b.lock.Unlock()

	for r := head; r != nil; {
		next := r.next
		r.pk.Signal()
		r = next
	}
	return count
}
