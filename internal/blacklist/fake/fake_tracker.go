// Package fake provides an in-memory BlacklistTracker test double, in
// the same spirit as the teacher's context/fake package.
package fake

import (
	"github.com/G-Research/executor-allocator/internal/domain"
)

type Tracker struct {
	SchedulerBlacklistedNodes map[domain.Host]bool
	AllocationFailures        []*domain.Host
	NumClusterNodesSet        int
	AllNodeBlacklisted        bool
}

func New() *Tracker {
	return &Tracker{SchedulerBlacklistedNodes: map[domain.Host]bool{}}
}

func (t *Tracker) SetSchedulerBlacklistedNodes(nodes map[domain.Host]bool) {
	t.SchedulerBlacklistedNodes = nodes
}

func (t *Tracker) HandleResourceAllocationFailure(host *domain.Host) {
	t.AllocationFailures = append(t.AllocationFailures, host)
}

func (t *Tracker) SetNumClusterNodes(n int) {
	t.NumClusterNodesSet = n
}

func (t *Tracker) IsAllNodeBlacklisted() bool {
	return t.AllNodeBlacklisted
}
