// Package rack resolves hosts to rack paths for the allocator's
// rack-local matching pass (spec.md §4.6.4). The resolver itself is an
// out-of-scope external collaborator; this package specifies the
// contract, an LRU-cached wrapper around it, and the goroutine-per-batch
// isolation the spec requires so a resolver that swallows interrupts
// cannot make the allocator's reconciliation step uncancelable.
package rack

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// Resolver is the out-of-scope external collaborator: given a host,
// return its rack path. Implementations are free to block (e.g. a
// topology script or DNS lookup) and are not required to honor context
// cancellation internally — that's exactly why batches run on a
// throwaway goroutine (see ResolveBatch).
type Resolver interface {
	Resolve(host domain.Host) (domain.Rack, error)
}

// CachedResolver wraps a Resolver with a bounded LRU cache, so repeat
// hosts within a reconciliation step (or across many steps) skip the
// underlying resolver entirely.
type CachedResolver struct {
	inner Resolver
	cache *lru.Cache
}

// NewCachedResolver constructs a CachedResolver with room for size
// distinct hosts.
func NewCachedResolver(inner Resolver, size int) (*CachedResolver, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedResolver{inner: inner, cache: cache}, nil
}

func (c *CachedResolver) Resolve(host domain.Host) (domain.Rack, error) {
	if cached, ok := c.cache.Get(host); ok {
		return cached.(domain.Rack), nil
	}
	rack, err := c.inner.Resolve(host)
	if err != nil {
		return "", err
	}
	c.cache.Add(host, rack)
	return rack, nil
}

// ResolveBatch resolves every host in hosts on a single short-lived
// goroutine, so that a resolver implementation known to swallow thread
// interrupts cannot prevent the calling reconciliation step from being
// canceled via ctx: the goroutine is joined through errgroup, and ctx
// cancellation unblocks the caller (though the leaked goroutine may
// still run to completion in the background — callers that cancel
// should not reuse the resolver's result).
func ResolveBatch(ctx context.Context, resolver Resolver, hosts []domain.Host) (map[domain.Host]domain.Rack, error) {
	results := make(map[domain.Host]domain.Rack, len(hosts))
	if len(hosts) == 0 {
		return results, nil
	}

	done := make(chan error, 1)
	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		for _, h := range hosts {
			rack, err := resolver.Resolve(h)
			if err != nil {
				return err
			}
			results[h] = rack
		}
		return nil
	})
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return results, err
	case <-ctx.Done():
		return results, ctx.Err()
	}
}
