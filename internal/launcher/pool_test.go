package launcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsEnqueuedJobs(t *testing.T) {
	pool := NewPool(2)
	pool.Start()
	defer pool.Stop()

	var count int64
	for i := 0; i < 10; i++ {
		pool.Enqueue(func() { atomic.AddInt64(&count, 1) })
	}
	pool.WaitUntilProcessed()

	assert.EqualValues(t, 10, atomic.LoadInt64(&count))
}

func TestPool_LimitsConcurrency(t *testing.T) {
	pool := NewPool(2)
	pool.Start()
	defer pool.Stop()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	release := make(chan struct{})

	for i := 0; i < 6; i++ {
		pool.Enqueue(func() {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			<-release

			mu.Lock()
			inFlight--
			mu.Unlock()
		})
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	pool.WaitUntilProcessed()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxInFlight, 2)
}

func TestPool_StopIsIdempotent(t *testing.T) {
	pool := NewPool(1)
	pool.Start()
	pool.Stop()
	// Second Stop is a no-op, not a panic.
	pool.Stop()
}
