// Package failuretracker counts executor completions caused by the
// application within a sliding time window (C3).
package failuretracker

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
)

// Tracker counts app-caused executor failures over a sliding window.
// Failures are recorded as cache items with a TTL equal to the window;
// go-cache's janitor evicts expired items and the eviction callback
// decrements the count, so the tracker needs no timer goroutine of its
// own for that purpose.
type Tracker struct {
	window int64 // the configured window in nanoseconds
	store  *cache.Cache
	count  int64 // atomic running count, decremented by the eviction callback
}

// New constructs a Tracker with the given sliding window. A window of
// zero disables expiry (every failure counts forever).
func New(window time.Duration) *Tracker {
	cleanupInterval := window
	if cleanupInterval <= 0 {
		cleanupInterval = cache.NoExpiration
	}
	t := &Tracker{
		window: int64(window),
		store:  cache.New(window, cleanupInterval),
	}
	t.store.OnEvicted(func(string, interface{}) {
		atomic.AddInt64(&t.count, -1)
	})
	return t
}

// RecordFailure registers an app-caused executor failure. Call this only
// for completions where exitCausedByApp is true; RM/system-fault exits
// never reach the tracker.
func (t *Tracker) RecordFailure(executorId string) {
	key := fmt.Sprintf("%s-%s", executorId, uuid.New().String())
	t.store.Set(key, struct{}{}, cache.DefaultExpiration)
	atomic.AddInt64(&t.count, 1)
}

// NumFailedExecutors returns the number of app-caused failures currently
// within the window.
func (t *Tracker) NumFailedExecutors() int {
	return int(atomic.LoadInt64(&t.count))
}

// ExceedsThreshold reports whether the current failure count is at or
// above the given fatal threshold. A threshold <= 0 disables the check.
func (t *Tracker) ExceedsThreshold(threshold int) bool {
	if threshold <= 0 {
		return false
	}
	return t.NumFailedExecutors() >= threshold
}
