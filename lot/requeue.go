package lot

// RequeueOp is the decision UnparkRequeue's validate callback returns,
// made while holding both the source and destination bucket locks.
type RequeueOp int

const (
	// OpAbort relinks every waiter back onto the source queue, unchanged,
	// and wakes nobody.
	OpAbort RequeueOp = iota
	// OpUnparkOne wakes exactly the first queued waiter directly; any
	// other waiters queued for keyFrom are relinked back onto the source
	// queue untouched (they are not moved and not woken).
	OpUnparkOne
	// OpUnparkOneRequeueRest wakes the first queued waiter directly and
	// moves every other waiter queued for keyFrom onto keyTo's queue,
	// without waking them.
	OpUnparkOneRequeueRest
	// OpRequeueAll moves every waiter queued for keyFrom onto keyTo's
	// queue without waking any of them.
	OpRequeueAll
)

// UnparkRequeue implements spec.md §4.4's unpark_requeue: it atomically
// moves some or all of the waiters queued on keyFrom onto keyTo's queue
// without waking them (a plain requeue), optionally waking exactly one of
// them directly, all decided by validate while both bucket locks are held.
//
// This is what lets a condvar's notify_one, called with its mutex held,
// move a waiter onto the mutex's own wait queue instead of waking it only
// for it to immediately re-block trying to acquire the mutex (spec.md
// §4.6, testable scenario 3).
//
// callback, if non-nil, runs under both locks with the final op and count
// already decided. UnparkRequeue returns count: the total number of
// waiters that ended up unparked-directly or requeued (0 for OpAbort).
func UnparkRequeue(keyFrom, keyTo Key, validate func() RequeueOp, callback func(op RequeueOp, count int)) int {
	from, to := lockBucketPair(keyFrom, keyTo)
	sameBucket := from == to

	removedHead, _ := from.removeAll(keyFrom)
	op := validate()

	unlockBoth := func() {
		if sameBucket {
			from.lock.Unlock()
			return
		}
		to.lock.Unlock()
		from.lock.Unlock()
	}

	if op == OpAbort {
		from.relinkFront(removedHead)
		if callback != nil {
			callback(op, 0)
		}
		unlockBoth()
		return 0
	}

	var directUnpark *Record
	rest := removedHead
	if op == OpUnparkOne || op == OpUnparkOneRequeueRest {
		if rest != nil {
			directUnpark = rest
			rest = rest.next
			directUnpark.next = nil
		}
	}

	count := 0
	switch op {
	case OpUnparkOne:
		// The rest stay on the source queue, untouched.
		from.relinkFront(rest)
		if directUnpark != nil {
			count = 1
		}
	case OpUnparkOneRequeueRest, OpRequeueAll:
		for r := rest; r != nil; r = r.next {
			r.key = keyTo
			count++
		}
		if rest != nil {
			tail := rest
			for tail.next != nil {
				tail = tail.next
			}
			to.spliceTail(rest, tail)
		}
		if directUnpark != nil {
			count++
		}
	}

	if callback != nil {
		callback(op, count)
	}
	unlockBoth()

	if directUnpark != nil {
		directUnpark.pk.Signal()
	}
	return count
}
