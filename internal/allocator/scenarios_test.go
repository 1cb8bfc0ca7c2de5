package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// Scenario 1: basic fill. requestTotal bumps the target from 0 to N with
// no containers granted yet; the first allocate() step must submit
// exactly N pending requests and launch nothing.
func TestScenario_BasicFill(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(3, 5, map[domain.Host]int{"h1": 5}, nil)

	require.NoError(t, h.allocator.Allocate(context.Background()))

	assert.Equal(t, 3, h.allocator.NumContainersPendingAllocate())
	assert.Equal(t, 0, h.launcher.Calls())
}

// Scenario 2: shrink by cancellation. Once pending requests exist,
// lowering the target cancels the excess without touching any running
// executor.
func TestScenario_ShrinkByCancellation(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(3, 0, nil, nil)
	require.NoError(t, h.allocator.Allocate(context.Background()))
	require.Equal(t, 3, h.allocator.NumContainersPendingAllocate())

	h.allocator.RequestTotal(1, 0, nil, nil)
	require.NoError(t, h.allocator.Allocate(context.Background()))

	assert.Equal(t, 1, h.allocator.NumContainersPendingAllocate())
	assert.Equal(t, 0, h.allocator.NumExecutorsRunning())
}

// Scenario 3: surplus release. A container granted with no matching
// pending request at any locality level is released, not launched.
func TestScenario_SurplusRelease(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.rack.Racks["ghost-host"] = ""
	h.allocator.RequestTotal(0, 0, nil, nil)
	h.store.QueueAllocated(domain.Container{Id: "surplus-1", Host: "ghost-host", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()})

	require.NoError(t, h.allocator.Allocate(context.Background()))

	assert.Equal(t, 0, h.launcher.Calls())
	assert.Equal(t, []domain.ContainerId{"surplus-1"}, h.store.Released())
	assert.Equal(t, 1, h.allocator.NumReleasedContainers())
}

// Scenario 4: explicit kill followed by a loss-reason query racing the
// container's completion report. Whichever arrives second, the driver
// gets the "explicit termination request" reason exactly once.
func TestScenario_ExplicitKillThenLossReasonQuery(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(1, 5, map[domain.Host]int{"h1": 5}, nil)
	require.NoError(t, h.allocator.Allocate(context.Background()))

	h.store.QueueAllocated(domain.Container{Id: "c1", Host: "h1", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()})
	require.NoError(t, h.allocator.Allocate(context.Background()))
	h.allocator.launcherPool.WaitUntilProcessed()
	require.Equal(t, 1, h.allocator.NumExecutorsRunning())

	executorId := h.launcher.LastParams().ExecutorId
	h.allocator.KillExecutor(executorId)

	// The completion report for the killed container arrives on the
	// next allocate() step, after the kill has already run.
	h.store.QueueCompleted(domain.ContainerStatus{ContainerId: "c1", Host: "h1", ExitStatus: domain.ExitStatusKilledByAppMaster})
	require.NoError(t, h.allocator.Allocate(context.Background()))

	var reason domain.ExitReason
	var gotErr error
	h.allocator.EnqueueGetLossReason(executorId, func(r domain.ExitReason, err error) {
		reason, gotErr = r, err
	})
	require.NoError(t, gotErr)
	assert.Equal(t, "explicit termination request", reason.Message)
	assert.False(t, reason.ExitCausedByApp)
}

// Scenario 4b: the same race, but the loss-reason query arrives BEFORE
// the completion report — it must queue and be answered once the
// completion is processed, not fail with "no such executor".
func TestScenario_LossReasonQueryBeforeCompletionQueuesThenReplies(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(1, 5, map[domain.Host]int{"h1": 5}, nil)
	require.NoError(t, h.allocator.Allocate(context.Background()))
	h.store.QueueAllocated(domain.Container{Id: "c1", Host: "h1", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()})
	require.NoError(t, h.allocator.Allocate(context.Background()))
	h.allocator.launcherPool.WaitUntilProcessed()

	executorId := h.launcher.LastParams().ExecutorId
	h.allocator.KillExecutor(executorId)

	replied := false
	var reason domain.ExitReason
	h.allocator.EnqueueGetLossReason(executorId, func(r domain.ExitReason, err error) {
		replied, reason = true, r
	})
	assert.False(t, replied, "reply must wait for the completion report")

	h.store.QueueCompleted(domain.ContainerStatus{ContainerId: "c1", Host: "h1", ExitStatus: domain.ExitStatusKilledByAppMaster})
	require.NoError(t, h.allocator.Allocate(context.Background()))

	assert.True(t, replied)
	assert.Equal(t, "explicit termination request", reason.Message)
}

// Scenario 5: pmem-exceeded kill counts as an app fault but does NOT
// inform the blacklist tracker.
func TestScenario_PmemExceededKillIsAppFaultNotBlacklisted(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(1, 5, map[domain.Host]int{"h1": 5}, nil)
	require.NoError(t, h.allocator.Allocate(context.Background()))
	h.store.QueueAllocated(domain.Container{Id: "c1", Host: "h1", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()})
	require.NoError(t, h.allocator.Allocate(context.Background()))
	h.allocator.launcherPool.WaitUntilProcessed()
	require.Equal(t, 1, h.allocator.NumExecutorsRunning())

	h.store.QueueCompleted(domain.ContainerStatus{
		ContainerId: "c1", Host: "h1", ExitStatus: domain.ExitStatusPmemExceeded,
		Diagnostics: "2.5 GB of 2 GB physical memory used",
	})
	require.NoError(t, h.allocator.Allocate(context.Background()))

	assert.Equal(t, 1, h.allocator.NumExecutorsFailed())
	assert.Empty(t, h.blacklist.AllocationFailures)
	assert.Equal(t, 0, h.allocator.NumExecutorsRunning())
}

// Scenario 6: an unclassified ("any other") exit status feeds the
// blacklist tracker, unlike pmem/vmem exceeded.
func TestScenario_UnknownFaultExitFeedsBlacklist(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(1, 5, map[domain.Host]int{"h1": 5}, nil)
	require.NoError(t, h.allocator.Allocate(context.Background()))
	h.store.QueueAllocated(domain.Container{Id: "c1", Host: "h1", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()})
	require.NoError(t, h.allocator.Allocate(context.Background()))
	h.allocator.launcherPool.WaitUntilProcessed()
	require.Equal(t, 1, h.allocator.NumExecutorsRunning())

	h.store.QueueCompleted(domain.ContainerStatus{
		ContainerId: "c1", Host: "h1", ExitStatus: domain.ExitStatus(137), Diagnostics: "unexpected JVM crash",
	})
	require.NoError(t, h.allocator.Allocate(context.Background()))

	require.Len(t, h.blacklist.AllocationFailures, 1)
	require.NotNil(t, h.blacklist.AllocationFailures[0])
	assert.Equal(t, domain.Host("h1"), *h.blacklist.AllocationFailures[0])
	assert.Equal(t, 1, h.allocator.NumExecutorsFailed())
}
