package rack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/rack/fake"
)

func TestCachedResolver_CachesAfterFirstLookup(t *testing.T) {
	inner := fake.New()
	inner.Racks["h1"] = "/rack1"

	cached, err := NewCachedResolver(inner, 16)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rack, err := cached.Resolve("h1")
		require.NoError(t, err)
		assert.Equal(t, domain.Rack("/rack1"), rack)
	}
	assert.Len(t, inner.Calls, 1)
}

func TestCachedResolver_PropagatesError(t *testing.T) {
	inner := fake.New()
	cached, err := NewCachedResolver(inner, 16)
	require.NoError(t, err)

	_, err = cached.Resolve("unknown")
	assert.Error(t, err)
}

func TestResolveBatch_ResolvesAllHosts(t *testing.T) {
	inner := fake.New()
	inner.Racks["h1"] = "/rack1"
	inner.Racks["h2"] = "/rack2"

	results, err := ResolveBatch(context.Background(), inner, []domain.Host{"h1", "h2"})
	require.NoError(t, err)
	assert.Equal(t, domain.Rack("/rack1"), results["h1"])
	assert.Equal(t, domain.Rack("/rack2"), results["h2"])
}

func TestResolveBatch_EmptyHostsIsNoOp(t *testing.T) {
	inner := fake.New()
	results, err := ResolveBatch(context.Background(), inner, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestResolveBatch_CanceledContextReturnsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := fake.New()
	inner.Racks["h1"] = "/rack1"
	// Resolve would block forever in a real resolver; here correctness
	// only requires that a pre-canceled context returns promptly.
	_, err := ResolveBatch(ctx, inner, []domain.Host{"h1"})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestResolveBatch_PropagatesUnderlyingError(t *testing.T) {
	inner := fake.New()
	_, err := ResolveBatch(context.Background(), inner, []domain.Host{"missing"})
	assert.Error(t, err)
}
