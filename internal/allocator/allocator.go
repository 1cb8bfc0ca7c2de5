// Package allocator implements the core reconciliation loop (C6): the
// control loop that maintains a desired executor count against a
// three-way reality (running, starting, pending-at-RM) under continuous
// RM churn, the bookkeeping state machine tracking container<->executor
// and release intent, and the failure accounting that feeds the
// blacklist tracker. Every exported method that reads or writes the
// allocator's own state locks mu for its duration (NumExecutorsFailed,
// IsAllNodeBlacklisted and Stop only delegate to collaborators and do
// not take it); the only work ever done off that lock is a dispatched
// launch job. A rack-resolution batch runs on its own goroutine while
// the caller holds mu (see containers.go).
package allocator

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/executor-allocator/internal/blacklist"
	"github.com/G-Research/executor-allocator/internal/configuration"
	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/driver"
	"github.com/G-Research/executor-allocator/internal/failuretracker"
	"github.com/G-Research/executor-allocator/internal/launcher"
	"github.com/G-Research/executor-allocator/internal/metrics"
	"github.com/G-Research/executor-allocator/internal/rack"
	"github.com/G-Research/executor-allocator/internal/requeststore"
	"github.com/G-Research/executor-allocator/internal/resourcespec"
)

// requestPriority is fixed by spec.md §6.
const requestPriority int32 = 1

// allocateProgress is the fixed progress indicator passed to
// requestStore.Allocate; it doubles as an RM heartbeat and carries no
// other meaning here.
const allocateProgress float32 = 0.1

// Allocator is the C6 control loop. All fields below mu are the §3 Data
// Model, owned exclusively by this struct and mutated only while mu is
// held.
type Allocator struct {
	mu sync.Mutex

	requestStore requeststore.Store
	launcherPool *launcher.Pool
	launcher     launcher.Launcher
	rackResolver rack.Resolver
	driverClient driver.Client
	failures     *failuretracker.Tracker
	blacklist    blacklist.Tracker
	metrics      *metrics.Metrics

	spec      resourcespec.Spec
	labelExpr string
	appId     string
	driverURL string

	// targetNumExecutors is the desired steady-state count.
	targetNumExecutors int
	// runningExecutors is the set of executors with a successfully
	// launched container.
	runningExecutors map[domain.ExecutorId]bool
	// numExecutorsStarting counts launches dispatched to the worker pool
	// but not yet settled.
	numExecutorsStarting int

	executorIdToContainer   map[domain.ExecutorId]domain.Container
	containerIdToExecutorId map[domain.ContainerId]domain.ExecutorId

	allocatedHostToContainers map[domain.Host]map[domain.ContainerId]bool
	allocatedContainerToHost  map[domain.ContainerId]domain.Host

	releasedContainers map[domain.ContainerId]bool

	pendingLossReasonRequests   map[domain.ExecutorId][]domain.LossReasonReply
	releasedExecutorLossReasons map[domain.ExecutorId]domain.ExitReason

	hostToLocalTaskCounts map[domain.Host]int
	numLocalityAwareTasks int

	executorIdCounter int

	numUnexpectedContainerRelease int
}

// Dependencies bundles every out-of-process collaborator the allocator
// is constructed with.
type Dependencies struct {
	RequestStore requeststore.Store
	Launcher     launcher.Launcher
	RackResolver rack.Resolver
	DriverClient driver.Client
	Failures     *failuretracker.Tracker
	Blacklist    blacklist.Tracker
	Metrics      *metrics.Metrics
}

// New constructs an Allocator. The initial executor id counter is
// seeded from the driver's RetrieveLastAllocatedExecutorId RPC (spec.md
// §3), falling back to config.Initial.LastAllocatedExecutorId if that
// call fails — an allocator restart must never reuse an id.
func New(ctx context.Context, config configuration.AllocatorConfiguration, deps Dependencies) *Allocator {
	var extraInterpreterWorkerMemory int64
	if config.Resource.IsInterpreterApp {
		extraInterpreterWorkerMemory = config.Resource.ExtraInterpreterWorkerMemory
	}
	spec := resourcespec.New(resourcespec.Params{
		ExecutorMemoryMB:             config.Resource.ExecutorMemoryMB,
		ExecutorMemoryOverheadMB:     config.Resource.ExecutorMemoryOverheadMB,
		ExtraInterpreterWorkerMemory: extraInterpreterWorkerMemory,
		ExecutorCores:                config.Resource.ExecutorCores,
		OverheadFactor:               config.Resource.OverheadFactor,
	})

	lastAllocated := config.Initial.LastAllocatedExecutorId
	if deps.DriverClient != nil {
		if id, err := deps.DriverClient.RetrieveLastAllocatedExecutorId(ctx); err != nil {
			log.Warnf("failed to retrieve last allocated executor id from driver, falling back to config: %s", err)
		} else {
			lastAllocated = id
		}
	}

	pool := launcher.NewPool(config.Launcher.MaxThreads)
	pool.Start()

	a := &Allocator{
		requestStore:                deps.RequestStore,
		launcherPool:                pool,
		launcher:                    deps.Launcher,
		rackResolver:                deps.RackResolver,
		driverClient:                deps.DriverClient,
		failures:                    deps.Failures,
		blacklist:                   deps.Blacklist,
		metrics:                     deps.Metrics,
		spec:                        spec,
		labelExpr:                   config.Request.NodeLabelExpression,
		appId:                       config.Application.AppId,
		driverURL:                   config.Application.DriverURL,
		targetNumExecutors:          config.Initial.InitialExecutorCount,
		runningExecutors:            map[domain.ExecutorId]bool{},
		executorIdToContainer:       map[domain.ExecutorId]domain.Container{},
		containerIdToExecutorId:     map[domain.ContainerId]domain.ExecutorId{},
		allocatedHostToContainers:   map[domain.Host]map[domain.ContainerId]bool{},
		allocatedContainerToHost:    map[domain.ContainerId]domain.Host{},
		releasedContainers:          map[domain.ContainerId]bool{},
		pendingLossReasonRequests:   map[domain.ExecutorId][]domain.LossReasonReply{},
		releasedExecutorLossReasons: map[domain.ExecutorId]domain.ExitReason{},
		hostToLocalTaskCounts:       map[domain.Host]int{},
		executorIdCounter:           lastAllocated,
	}
	return a
}

// requestTotal updates placement hints unconditionally and, if
// requestedTotal differs from the current target, updates it and
// forwards the blacklist to C4. Returns true iff the target changed.
// Never kills running executors to shrink — shrink happens only by
// canceling pending requests on the next allocate().
func (a *Allocator) requestTotal(requestedTotal int, localityAwareTasks int, hostToLocalTaskCounts map[domain.Host]int, nodeBlacklist map[domain.Host]bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.numLocalityAwareTasks = localityAwareTasks
	a.hostToLocalTaskCounts = hostToLocalTaskCounts

	if requestedTotal == a.targetNumExecutors {
		return false
	}
	a.targetNumExecutors = requestedTotal
	if a.blacklist != nil {
		a.blacklist.SetSchedulerBlacklistedNodes(nodeBlacklist)
	}
	return true
}

// RequestTotal is the exported entry point for requestTotal.
func (a *Allocator) RequestTotal(requestedTotal int, localityAwareTasks int, hostToLocalTaskCounts map[domain.Host]int, nodeBlacklist map[domain.Host]bool) bool {
	return a.requestTotal(requestedTotal, localityAwareTasks, hostToLocalTaskCounts, nodeBlacklist)
}

// killExecutor releases executorId's container (if known and not
// already released) and removes it from the running set. Unknown
// executors are logged and ignored.
func (a *Allocator) killExecutor(executorId domain.ExecutorId) {
	a.mu.Lock()
	defer a.mu.Unlock()

	container, ok := a.executorIdToContainer[executorId]
	if !ok {
		log.Warnf("killExecutor: unknown executor %s", executorId)
		return
	}
	if a.releasedContainers[container.Id] {
		return
	}
	a.releasedContainers[container.Id] = true
	a.requestStore.ReleaseAssignedContainer(container.Id)
	delete(a.runningExecutors, executorId)
	if a.metrics != nil {
		a.metrics.ContainersReleased.Inc()
	}
}

// KillExecutor is the exported entry point for killExecutor.
func (a *Allocator) KillExecutor(executorId domain.ExecutorId) {
	a.killExecutor(executorId)
}

// enqueueGetLossReason answers a driver query for why executorId is
// gone, queuing the reply if the executor's completion hasn't been
// processed yet.
func (a *Allocator) enqueueGetLossReason(executorId domain.ExecutorId, reply domain.LossReasonReply) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, known := a.executorIdToContainer[executorId]; known {
		a.pendingLossReasonRequests[executorId] = append(a.pendingLossReasonRequests[executorId], reply)
		return
	}
	if reason, ok := a.releasedExecutorLossReasons[executorId]; ok {
		delete(a.releasedExecutorLossReasons, executorId)
		reply(reason, nil)
		return
	}
	reply(domain.ExitReason{}, errNoSuchExecutor(executorId))
}

// EnqueueGetLossReason is the exported entry point for
// enqueueGetLossReason.
func (a *Allocator) EnqueueGetLossReason(executorId domain.ExecutorId, reply domain.LossReasonReply) {
	a.enqueueGetLossReason(executorId, reply)
}

// Stop shuts down the launcher worker pool: launches still queued are
// never started. A launch that is already running is not interrupted;
// it runs to completion and its bookkeeping is applied as usual.
func (a *Allocator) Stop() {
	a.launcherPool.Stop()
}

// NumExecutorsRunning is a read-only accessor.
func (a *Allocator) NumExecutorsRunning() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.runningExecutors)
}

// NumExecutorsFailed is a read-only accessor over the failure tracker.
func (a *Allocator) NumExecutorsFailed() int {
	return a.failures.NumFailedExecutors()
}

// NumContainersPendingAllocate reports the requests currently
// outstanding at the RM (any-host + locality-matched + stale).
func (a *Allocator) NumContainersPendingAllocate() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allPendingRequests())
}

// allPendingRequests flattens the RM's ANY_LOCATION view of outstanding
// requests at our priority/spec into a single list. Must be called
// with mu held.
func (a *Allocator) allPendingRequests() []*requeststore.Request {
	groups := a.requestStore.GetMatchingRequests(requestPriority, requeststore.AnyLocation, a.spec)
	var flat []*requeststore.Request
	for _, group := range groups {
		flat = append(flat, group...)
	}
	return flat
}

// NumReleasedContainers is a read-only accessor.
func (a *Allocator) NumReleasedContainers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.releasedContainers)
}

// IsAllNodeBlacklisted is a read-only accessor over the blacklist tracker.
func (a *Allocator) IsAllNodeBlacklisted() bool {
	if a.blacklist == nil {
		return false
	}
	return a.blacklist.IsAllNodeBlacklisted()
}
