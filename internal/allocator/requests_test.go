package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/requeststore"
)

func TestUpdateResourceRequests_GrowsToTargetWithNoPending(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(3, 5, map[domain.Host]int{"h1": 5}, nil)

	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()

	pending := h.store.Pending()
	require.Len(t, pending, 3)
	for _, r := range pending {
		assert.Equal(t, int32(1), r.Priority)
		assert.True(t, r.RelaxLocality)
	}
}

func TestUpdateResourceRequests_NoChangeWhenAtTarget(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(2, 0, nil, nil)

	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()
	require.Len(t, h.store.Pending(), 2)

	// A second pass at the same target must not add or remove requests.
	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()
	assert.Len(t, h.store.Pending(), 2)
}

func TestUpdateResourceRequests_ShrinkCancelsAnyHostFirst(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(3, 0, nil, nil)
	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()
	require.Len(t, h.store.Pending(), 3)

	h.allocator.RequestTotal(1, 0, nil, nil)
	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()

	assert.Len(t, h.store.Pending(), 1)
}

func TestUpdateResourceRequests_StaleLocalityRequestsAreCanceledAndReplaced(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(1, 5, map[domain.Host]int{"stale-host": 5}, nil)
	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()
	pending := h.store.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, []domain.Host{"stale-host"}, pending[0].Nodes)

	// missing == 0 here: per spec.md §4.6.3 the stale request is left
	// alone until a subsequent pass actually needs to grow.
	h.allocator.RequestTotal(1, 5, map[domain.Host]int{"fresh-host": 5}, nil)
	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()
	pending = h.store.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.Host("stale-host"), firstNodeOrEmpty(pending[0]))

	// Once growth is needed again, the now-stale request is canceled and
	// replaced with one matching the new hints.
	h.allocator.RequestTotal(2, 5, map[domain.Host]int{"fresh-host": 5}, nil)
	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()

	pending = h.store.Pending()
	require.Len(t, pending, 2)
	for _, r := range pending {
		assert.NotEqual(t, domain.Host("stale-host"), firstNodeOrEmpty(r))
	}
}

func firstNodeOrEmpty(r *requeststore.Request) domain.Host {
	if len(r.Nodes) == 0 {
		return ""
	}
	return r.Nodes[0]
}

func TestUpdateResourceRequests_LocalityMatchedRequestsSurviveAcrossPasses(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(1, 5, map[domain.Host]int{"h1": 5}, nil)
	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	firstPending := h.store.Pending()
	h.allocator.mu.Unlock()
	require.Len(t, firstPending, 1)

	// Same target, same hints: the already-matched request is neither
	// canceled nor duplicated.
	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()
	assert.Equal(t, firstPending, h.store.Pending())
}

func TestAllPendingRequests_UsesAnyLocationToSeeEverything(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(2, 0, nil, nil)
	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	pending := h.allocator.allPendingRequests()
	h.allocator.mu.Unlock()

	assert.Len(t, pending, 2)
}

func TestNumContainersPendingAllocate_CountsAcrossAllLocalityGroups(t *testing.T) {
	h := newTestHarness(t, testConfig())
	h.allocator.RequestTotal(3, 5, map[domain.Host]int{"h1": 5}, nil)

	h.allocator.mu.Lock()
	h.allocator.updateResourceRequests()
	h.allocator.mu.Unlock()

	assert.Equal(t, 3, h.allocator.NumContainersPendingAllocate())
}
