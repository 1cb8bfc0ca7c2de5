package allocator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/launcher"
	"github.com/G-Research/executor-allocator/internal/rack"
	"github.com/G-Research/executor-allocator/internal/requeststore"
)

// handleAllocatedContainers implements spec.md §4.6.4: three-pass
// host/rack/off-rack matching of newly granted containers against
// pending requests, surplus release, and launch dispatch. Must be
// called with mu held, and mu stays held while the rack-resolution
// batch runs: the batch is delegated to rack.ResolveBatch, which spawns
// a short-lived goroutine so the step stays cancelable via ctx even if
// the resolver swallows interrupts.
func (a *Allocator) handleAllocatedContainers(ctx context.Context, containers []domain.Container) error {
	var toLaunch []domain.Container
	var unmatched []domain.Container

	for _, c := range containers {
		if a.matchRequest(requeststore.HostLocation(c.Host)) {
			toLaunch = append(toLaunch, c)
		} else {
			unmatched = append(unmatched, c)
		}
	}

	if len(unmatched) > 0 {
		hosts := make([]domain.Host, 0, len(unmatched))
		seen := map[domain.Host]bool{}
		for _, c := range unmatched {
			if !seen[c.Host] {
				seen[c.Host] = true
				hosts = append(hosts, c.Host)
			}
		}

		racks, err := rack.ResolveBatch(ctx, a.rackResolver, hosts)
		if err != nil {
			// Rack resolution failures propagate after the batch worker
			// joins (spec.md §7); the caller can retry the next
			// reconciliation.
			return err
		}

		var stillUnmatched []domain.Container
		for _, c := range unmatched {
			if r, ok := racks[c.Host]; ok && r != "" && a.matchRequest(requeststore.RackLocation(r)) {
				toLaunch = append(toLaunch, c)
			} else {
				stillUnmatched = append(stillUnmatched, c)
			}
		}
		unmatched = stillUnmatched
	}

	var surplus []domain.Container
	for _, c := range unmatched {
		if a.matchRequest(requeststore.AnyLocation) {
			toLaunch = append(toLaunch, c)
		} else {
			surplus = append(surplus, c)
		}
	}

	for _, c := range surplus {
		a.releaseSurplusContainer(c)
	}
	for _, c := range toLaunch {
		a.launchContainer(c)
	}
	return nil
}

// matchRequest looks up and consumes (removes) one pending request at
// location, per the two-level GetMatchingRequests grouping: only the
// first inner list's first element is ever consumed per match. The
// request's own Spec was submitted as a.spec, so this is already the
// "relaxed resource key" the spec calls for: matching never inspects
// the granted container's reported vcores, only our own requested
// spec.
func (a *Allocator) matchRequest(location requeststore.Location) bool {
	groups := a.requestStore.GetMatchingRequests(requestPriority, location, a.spec)
	if len(groups) == 0 || len(groups[0]) == 0 {
		return false
	}
	a.requestStore.RemoveContainerRequest(groups[0][0])
	return true
}

func (a *Allocator) releaseSurplusContainer(c domain.Container) {
	a.releasedContainers[c.Id] = true
	a.requestStore.ReleaseAssignedContainer(c.Id)
	if a.metrics != nil {
		a.metrics.ContainersReleased.Inc()
	}
}

// launchContainer mints an executor id for c and dispatches its launch
// to the worker pool. Preserves two spec-mandated quirks verbatim
// (spec.md §9, both marked "preserve for test parity"):
//
//  1. numExecutorsStarting is only incremented after the |running| <
//     target gate, even though the matched request has already been
//     consumed — this can cause a transient under-request the next
//     reconciliation corrects.
//  2. A fatal launch error skips the numStarting decrement and
//     container-release cleanup entirely and propagates/terminates;
//     only non-fatal launch failures run that cleanup.
func (a *Allocator) launchContainer(c domain.Container) {
	a.executorIdCounter++
	executorId := domain.ExecutorId(formatExecutorId(a.executorIdCounter))

	if c.MemoryMB < a.spec.MemoryMB() {
		log.Errorf("granted container %s memory %dMB is below requested %dMB", c.Id, c.MemoryMB, a.spec.MemoryMB())
	}

	if len(a.runningExecutors) >= a.targetNumExecutors {
		// The container was already counted when we committed to a
		// request above; skipping the launch here yields a transient
		// overshoot in targetNumExecutors accounting that the next
		// reconciliation corrects. Specified as-is.
		return
	}

	a.numExecutorsStarting++
	params := launcher.Params{
		DriverURL:  a.driverURL,
		ExecutorId: executorId,
		MemoryMB:   c.MemoryMB,
		Cores:      a.spec.Vcores(),
		AppId:      a.appId,
	}

	dispatchedAt := time.Now()
	a.launcherPool.Enqueue(func() {
		err := launchAndRecover(a.launcher, c, params)
		a.onLaunchSettled(c, executorId, err, time.Since(dispatchedAt))
	})
}

// launchAndRecover converts a launcher panic into a fatal error
// distinguished from an ordinary launch error, so onLaunchSettled can
// preserve the "fatal launch errors skip cleanup and propagate"
// behavior required by spec.md §9. A panicking launcher is the closest
// idiomatic-Go analogue to a JVM-fatal throwable escaping the launch
// call.
func launchAndRecover(l launcher.Launcher, c domain.Container, params launcher.Params) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FatalLaunchError{Cause: r}
		}
	}()
	return l.Launch(c, params)
}

// onLaunchSettled finalizes bookkeeping for one launch, re-acquiring
// mu as spec.md §5 requires.
func (a *Allocator) onLaunchSettled(c domain.Container, executorId domain.ExecutorId, err error, dispatchLatency time.Duration) {
	if fatal, ok := err.(*FatalLaunchError); ok {
		// Fatal: numStarting is not decremented and the container is not
		// released; the condition is terminal and propagates instead.
		panic(fatal)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.ObserveLaunch(dispatchLatency)
	}

	a.numExecutorsStarting--
	if err != nil {
		log.Warnf("launch failed for container %s: %s", c.Id, err)
		a.requestStore.ReleaseAssignedContainer(c.Id)
		a.releasedContainers[c.Id] = true
		if a.metrics != nil {
			a.metrics.ContainersReleased.Inc()
		}
		return
	}

	a.runningExecutors[executorId] = true
	a.executorIdToContainer[executorId] = c
	a.containerIdToExecutorId[c.Id] = executorId
	if a.allocatedHostToContainers[c.Host] == nil {
		a.allocatedHostToContainers[c.Host] = map[domain.ContainerId]bool{}
	}
	a.allocatedHostToContainers[c.Host][c.Id] = true
	a.allocatedContainerToHost[c.Id] = c.Host
}
