// Package blacklist defines the allocator-facing contract for the
// node-blacklist tracker (C4). The tracker's internal policy (how many
// failures blacklist a node, how long a node stays blacklisted) is out
// of scope for this module; the allocator only drives the four calls
// below.
package blacklist

import (
	"sync"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// Tracker is the contract the allocator depends on.
type Tracker interface {
	// SetSchedulerBlacklistedNodes replaces the scheduler-driven portion
	// of the blacklist (as opposed to the allocation-failure-driven
	// portion fed by HandleResourceAllocationFailure).
	SetSchedulerBlacklistedNodes(nodes map[domain.Host]bool)

	// HandleResourceAllocationFailure is invoked once per container exit
	// whose status falls outside every classified exit category (and
	// that was not released by the allocator itself), optionally naming
	// the host the failure occurred on.
	HandleResourceAllocationFailure(host *domain.Host)

	// SetNumClusterNodes is piped from every allocate() response so the
	// tracker can judge what fraction of the cluster is blacklisted.
	SetNumClusterNodes(n int)

	// IsAllNodeBlacklisted reports whether every known cluster node is
	// currently blacklisted.
	IsAllNodeBlacklisted() bool
}

// CountingTracker is a minimal, dependency-free implementation: it
// accumulates the blacklist set and a failure count per host, and
// declares "all nodes blacklisted" once the scheduler+failure blacklist
// covers every node the cluster has reported. It does not attempt to
// expire failures or un-blacklist nodes; any richer policy belongs to
// the tracker's out-of-scope internals.
type CountingTracker struct {
	mu                  sync.Mutex
	schedulerBlacklist  map[domain.Host]bool
	failureBlacklist    map[domain.Host]bool
	allocationFailures  map[domain.Host]int
	numClusterNodes     int
	failuresToBlacklist int
}

// NewCountingTracker constructs a tracker that blacklists a node after
// failuresToBlacklist allocation failures against it. A value <= 0
// disables failure-driven blacklisting (only the scheduler-supplied set
// is honored).
func NewCountingTracker(failuresToBlacklist int) *CountingTracker {
	return &CountingTracker{
		schedulerBlacklist:  map[domain.Host]bool{},
		failureBlacklist:    map[domain.Host]bool{},
		allocationFailures:  map[domain.Host]int{},
		failuresToBlacklist: failuresToBlacklist,
	}
}

func (t *CountingTracker) SetSchedulerBlacklistedNodes(nodes map[domain.Host]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.schedulerBlacklist = make(map[domain.Host]bool, len(nodes))
	for host, blacklisted := range nodes {
		if blacklisted {
			t.schedulerBlacklist[host] = true
		}
	}
}

func (t *CountingTracker) HandleResourceAllocationFailure(host *domain.Host) {
	if host == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failuresToBlacklist <= 0 {
		return
	}
	t.allocationFailures[*host]++
	if t.allocationFailures[*host] >= t.failuresToBlacklist {
		t.failureBlacklist[*host] = true
	}
}

func (t *CountingTracker) SetNumClusterNodes(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.numClusterNodes = n
}

func (t *CountingTracker) IsAllNodeBlacklisted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.numClusterNodes <= 0 {
		return false
	}
	blacklisted := map[domain.Host]bool{}
	for h := range t.schedulerBlacklist {
		blacklisted[h] = true
	}
	for h := range t.failureBlacklist {
		blacklisted[h] = true
	}
	return len(blacklisted) >= t.numClusterNodes
}
