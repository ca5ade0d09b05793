// Package config exposes the tunable constants spec.md §6 names as the
// parking lot's "configuration surface": initial bucket count, the resize
// load-factor threshold, and spin counts. All are read once, at package
// initialization, from environment variables with compiled-in defaults — there is no
// runtime config file, per spec.md.
package config

import (
	"os"
	"strconv"
)

var (
	// InitialBuckets is the hash table's starting bucket count. Must be a
	// power of two.
	InitialBuckets = envInt("PARKINGLOT_INITIAL_BUCKETS", 64)

	// LoadFactorDen is the denominator of the resize trigger: a resize is
	// triggered once live thread records exceed buckets/LoadFactorDen,
	// matching spec.md §4.3's "threads > buckets / 3" example.
	LoadFactorDen = envInt("PARKINGLOT_LOAD_FACTOR_DEN", 3)

	// WordLockSpins bounds how many times wordlock.Lock spins before
	// parking on contention.
	WordLockSpins = envInt("PARKINGLOT_WORDLOCK_SPINS", 40)

	// MutexSpins bounds how many times Mutex/RWMutex fast-path retries
	// spin before setting the parked bit and calling lot.Park.
	MutexSpins = envInt("PARKINGLOT_MUTEX_SPINS", 100)
)

func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
