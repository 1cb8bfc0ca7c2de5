// Package task runs the allocator's background loops (reconciliation,
// plus anything else the cmd entrypoint wants on a fixed interval),
// grounded on the teacher's BackgroundTaskManager: each registered
// function gets its own goroutine, ticker and latency histogram, and
// every task's first run happens immediately rather than after the
// first interval.
package task

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type scheduledTask struct {
	run      func()
	interval time.Duration
	name     string
	stop     chan struct{}
}

// Manager is not safe for concurrent use; Register and StopAll are
// expected to be called from the goroutine that owns startup/shutdown.
type Manager struct {
	tasks         []*scheduledTask
	metricsPrefix string
	registerer    prometheus.Registerer
	wg            sync.WaitGroup
}

// NewManager constructs a Manager whose per-task latency histograms are
// named metricsPrefix+name+"_latency_seconds" and registered against
// reg.
func NewManager(metricsPrefix string, reg prometheus.Registerer) *Manager {
	return &Manager{metricsPrefix: metricsPrefix, registerer: reg}
}

// Register starts run on its own goroutine, invoking it immediately and
// then every interval until StopAll is called.
func (m *Manager) Register(run func(), interval time.Duration, name string) {
	t := &scheduledTask{run: run, interval: interval, name: name, stop: make(chan struct{})}
	m.tasks = append(m.tasks, t)
	m.start(t)
}

// StopAll signals every registered task to stop and waits up to timeout
// for their goroutines to exit. Returns true if the wait timed out.
func (m *Manager) StopAll(timeout time.Duration) bool {
	for _, t := range m.tasks {
		close(t.stop)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.wg.Wait()
	}()
	select {
	case <-done:
		return false
	case <-time.After(timeout):
		return true
	}
}

func (m *Manager) start(t *scheduledTask) {
	latency := promauto.With(m.registerer).NewHistogram(prometheus.HistogramOpts{
		Name:    m.metricsPrefix + t.name + "_latency_seconds",
		Help:    "Latency of the " + t.name + " background loop, in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		runAndObserve(t.run, latency)
		for {
			select {
			case <-time.After(t.interval):
				runAndObserve(t.run, latency)
			case <-t.stop:
				return
			}
		}
	}()
}

func runAndObserve(run func(), latency prometheus.Histogram) {
	start := time.Now()
	run()
	latency.Observe(time.Since(start).Seconds())
}
