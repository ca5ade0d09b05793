// Package spin provides the bounded spin-then-yield backoff shared by the
// word lock and the atomic-word primitives (mutex, rwlock) before either
// falls back to parking a goroutine.
//
// This has no architecture-specific pause instruction to reach for (the
// teacher's own Pause stub did not survive retrieval as buildable assembly),
// so every spin step is a runtime.Gosched, same as the teacher's block
// package already falls back to for its own spin loop.
package spin

import "runtime"

// Backoff tracks spin state across repeated calls to Spin.
type Backoff struct {
	iter int
}

// Spin performs one backoff step and reports whether the caller has
// exceeded max spin iterations, at which point it should stop spinning and
// park instead.
func (b *Backoff) Spin(max int) (exhausted bool) {
	if b.iter >= max {
		return true
	}
	b.iter++
	runtime.Gosched()
	return false
}

// Reset clears accumulated backoff state, for reuse across independent
// spin episodes (e.g. a retry loop around a CAS).
func (b *Backoff) Reset() {
	b.iter = 0
}
