package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/requeststore"
)

func TestHandleAllocatedContainers_HostLocalMatchLaunches(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.targetNumExecutors = 1
	h.allocator.requestStore.AddContainerRequest(requeststore.Request{
		Priority: requestPriority, Spec: h.allocator.spec, Nodes: []domain.Host{"h1"},
	})

	c := domain.Container{Id: "c1", Host: "h1", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()}
	require.NoError(t, h.allocator.handleAllocatedContainers(context.Background(), []domain.Container{c}))
	h.allocator.launcherPool.WaitUntilProcessed()

	assert.Equal(t, 1, h.launcher.Calls())
	assert.Empty(t, h.store.Pending())
}

func TestHandleAllocatedContainers_RackLocalMatchLaunches(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.targetNumExecutors = 1
	h.rack.Racks["h2"] = "rack-a"
	h.allocator.requestStore.AddContainerRequest(requeststore.Request{
		Priority: requestPriority, Spec: h.allocator.spec, Racks: []domain.Rack{"rack-a"},
	})

	c := domain.Container{Id: "c1", Host: "h2", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()}
	require.NoError(t, h.allocator.handleAllocatedContainers(context.Background(), []domain.Container{c}))
	h.allocator.launcherPool.WaitUntilProcessed()

	assert.Equal(t, 1, h.launcher.Calls())
}

func TestHandleAllocatedContainers_AnyHostFallbackLaunches(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.targetNumExecutors = 1
	// Empty (not missing) rack entry: resolvable with no error, but no
	// rack-local request to match against, so the container falls
	// through to the off-rack pass.
	h.rack.Racks["h3"] = ""
	h.allocator.requestStore.AddContainerRequest(requeststore.Request{
		Priority: requestPriority, Spec: h.allocator.spec,
	})

	c := domain.Container{Id: "c1", Host: "h3", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()}
	require.NoError(t, h.allocator.handleAllocatedContainers(context.Background(), []domain.Container{c}))
	h.allocator.launcherPool.WaitUntilProcessed()

	assert.Equal(t, 1, h.launcher.Calls())
}

func TestHandleAllocatedContainers_UnmatchedBecomesSurplus(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.targetNumExecutors = 1
	h.rack.Racks["h4"] = ""
	// No pending requests at all: the granted container cannot match
	// any pass and must be released as surplus.
	c := domain.Container{Id: "c1", Host: "h4", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()}
	require.NoError(t, h.allocator.handleAllocatedContainers(context.Background(), []domain.Container{c}))
	h.allocator.launcherPool.WaitUntilProcessed()

	assert.Equal(t, 0, h.launcher.Calls())
	assert.Equal(t, []domain.ContainerId{"c1"}, h.store.Released())
	assert.True(t, h.allocator.releasedContainers["c1"])
}

func TestLaunchContainer_SkipsWhenAlreadyAtTarget(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.targetNumExecutors = 0
	// Already at target: the request match already consumed the
	// request, but the launch itself is skipped per spec.md §9.
	h.allocator.launchContainer(domain.Container{Id: "c1", Host: "h1", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()})
	h.allocator.launcherPool.WaitUntilProcessed()

	assert.Equal(t, 0, h.launcher.Calls())
	assert.Equal(t, 0, h.allocator.numExecutorsStarting)
}

func TestLaunchContainer_FailureReleasesContainerAndDecrementsStarting(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.targetNumExecutors = 1
	h.launcher.Err = assertError{}

	h.allocator.launchContainer(domain.Container{Id: "c1", Host: "h1", MemoryMB: h.allocator.spec.MemoryMB(), Vcores: h.allocator.spec.Vcores()})
	h.allocator.launcherPool.WaitUntilProcessed()

	h.allocator.mu.Lock()
	defer h.allocator.mu.Unlock()
	assert.Equal(t, 0, h.allocator.numExecutorsStarting)
	assert.Equal(t, []domain.ContainerId{"c1"}, h.store.Released())
	assert.Empty(t, h.allocator.runningExecutors)
}

type assertError struct{}

func (assertError) Error() string { return "launch failed" }
