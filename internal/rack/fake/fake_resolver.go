// Package fake provides a rack.Resolver test double driven entirely by
// a fixed host->rack table.
package fake

import (
	"fmt"
	"sync"

	"github.com/G-Research/executor-allocator/internal/domain"
)

type Resolver struct {
	mu    sync.Mutex
	Racks map[domain.Host]domain.Rack

	// Err, if set, is returned by Resolve for any host not present in
	// Racks.
	Err error

	Calls []domain.Host
}

func New() *Resolver {
	return &Resolver{Racks: map[domain.Host]domain.Rack{}}
}

func (r *Resolver) Resolve(host domain.Host) (domain.Rack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, host)
	if rack, ok := r.Racks[host]; ok {
		return rack, nil
	}
	if r.Err != nil {
		return "", r.Err
	}
	return "", fmt.Errorf("fake: no rack configured for host %q", host)
}
