package allocator

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Allocate runs one reconciliation step (spec.md §4.6.2): update
// requests, heartbeat+receive via the request store, feed the cluster
// node count to the blacklist tracker, handle newly granted containers,
// then process completions. The RM allocate call is made under mu, per
// spec.md §5 — it is the only step that both updates and receives
// state, so there is no safe point to release the lock around it.
func (a *Allocator) Allocate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.ObserveReconcile(time.Since(start))
		}
	}()

	a.updateResourceRequests()

	resp, err := a.requestStore.Allocate(allocateProgress)
	if err != nil {
		return errors.Wrap(err, "allocate")
	}

	if a.blacklist != nil {
		a.blacklist.SetNumClusterNodes(resp.NumClusterNodes)
	}

	if err := a.handleAllocatedContainers(ctx, resp.Allocated); err != nil {
		return errors.Wrap(err, "handling allocated containers")
	}

	a.processCompletedContainers(resp.Completed)

	if a.metrics != nil {
		a.metrics.ExecutorsRunning.Set(float64(len(a.runningExecutors)))
		a.metrics.ExecutorsStarting.Set(float64(a.numExecutorsStarting))
		a.metrics.ContainersPending.Set(float64(len(a.allPendingRequests())))
		blacklisted := 0.0
		if a.blacklist != nil && a.blacklist.IsAllNodeBlacklisted() {
			blacklisted = 1.0
		}
		a.metrics.AllNodesBlacklisted.Set(blacklisted)
	}

	return nil
}
