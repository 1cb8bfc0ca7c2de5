// Package metrics exposes the allocator's Prometheus surface (C8),
// grounded on the teacher's armada_-prefixed metric names and its
// scheduleBackgroundTask latency histogram pattern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricPrefix = "executor_allocator_"

// Metrics bundles every gauge/counter/histogram the allocator updates
// during a reconciliation step.
type Metrics struct {
	ReconcileLatency    prometheus.Histogram
	LaunchLatency       prometheus.Histogram
	ExecutorsRunning    prometheus.Gauge
	ExecutorsStarting   prometheus.Gauge
	ExecutorsFailed     prometheus.Counter
	ContainersReleased  prometheus.Counter
	ContainersPending   prometheus.Gauge
	AllNodesBlacklisted prometheus.Gauge
	RequestsAdded       prometheus.Counter
	RequestsCanceled    prometheus.Counter
}

// New registers the allocator's metrics against reg. Production wiring
// passes prometheus.DefaultRegisterer; tests that construct more than
// one Allocator in the same process should pass a fresh
// prometheus.NewRegistry() each time to avoid duplicate-registration
// panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReconcileLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPrefix + "reconcile_latency_seconds",
			Help:    "Latency of a single allocate() reconciliation step, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		LaunchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPrefix + "launch_latency_seconds",
			Help:    "Latency from dispatching a container launch to the worker pool to it settling, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		ExecutorsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricPrefix + "executors_running",
			Help: "Number of executors with a running container.",
		}),
		ExecutorsStarting: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricPrefix + "executors_starting",
			Help: "Number of executors whose launch is in flight.",
		}),
		ExecutorsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "executors_failed_total",
			Help: "Total executor completions classified as an application fault.",
		}),
		ContainersReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "containers_released_total",
			Help: "Total containers released by the allocator (kill or surplus).",
		}),
		ContainersPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricPrefix + "containers_pending_allocate",
			Help: "Number of outstanding container requests not yet granted.",
		}),
		AllNodesBlacklisted: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricPrefix + "all_nodes_blacklisted",
			Help: "1 if every cluster node is currently blacklisted, else 0.",
		}),
		RequestsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "requests_added_total",
			Help: "Total container requests submitted to the request store.",
		}),
		RequestsCanceled: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "requests_canceled_total",
			Help: "Total container requests canceled (stale locality, shrink, or any-host trim).",
		}),
	}
}

// ObserveReconcile records the wall-clock duration of one allocate()
// call, mirroring the teacher's BackgroundTaskManager latency
// histogram for its own background loops.
func (m *Metrics) ObserveReconcile(d time.Duration) {
	m.ReconcileLatency.Observe(d.Seconds())
}

// ObserveLaunch records the wall-clock duration from dispatching a
// container launch to the worker pool to it settling (success or
// failure).
func (m *Metrics) ObserveLaunch(d time.Duration) {
	m.LaunchLatency.Observe(d.Seconds())
}
