// Package fake provides an in-memory requeststore.Store test double
// driven entirely by the test: Allocate returns whatever has been
// queued via QueueAllocated/QueueCompleted, with no real RM round trip.
package fake

import (
	"sync"

	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/requeststore"
	"github.com/G-Research/executor-allocator/internal/resourcespec"
)

type Store struct {
	mu sync.Mutex

	pending   []*requeststore.Request
	released  []domain.ContainerId
	allocated []domain.Container
	completed []domain.ContainerStatus

	NumClusterNodes int
	AllocateError   error

	// AllocateCalls records the progress value passed on each call, for
	// assertions that the allocator heartbeats with the fixed 0.1.
	AllocateCalls []float32
}

func New() *Store {
	return &Store{}
}

func (s *Store) AddContainerRequest(req requeststore.Request) *requeststore.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle := &req
	s.pending = append(s.pending, handle)
	return handle
}

func (s *Store) RemoveContainerRequest(req *requeststore.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.pending {
		if r == req {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *Store) GetMatchingRequests(priority int32, location requeststore.Location, spec resourcespec.Spec) [][]*requeststore.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*requeststore.Request
	for _, r := range s.pending {
		if r.Priority != priority || r.Spec != spec {
			continue
		}
		if matchesLocation(r, location) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	result := make([][]*requeststore.Request, len(matches))
	for i, m := range matches {
		result[i] = []*requeststore.Request{m}
	}
	return result
}

// matchesLocation mirrors AMRMClient's ANY_LOCATION query: the wildcard
// returns every pending request at this priority/spec, host-specific or
// not, since the RM aggregates all requests under the wildcard resource
// name regardless of their own locality hints.
func matchesLocation(r *requeststore.Request, location requeststore.Location) bool {
	if location == requeststore.AnyLocation {
		return true
	}
	for _, n := range r.Nodes {
		if requeststore.HostLocation(n) == location {
			return true
		}
	}
	for _, rk := range r.Racks {
		if requeststore.RackLocation(rk) == location {
			return true
		}
	}
	return false
}

func (s *Store) Allocate(progress float32) (requeststore.AllocateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AllocateCalls = append(s.AllocateCalls, progress)
	if s.AllocateError != nil {
		return requeststore.AllocateResponse{}, s.AllocateError
	}
	resp := requeststore.AllocateResponse{
		Allocated:       s.allocated,
		Completed:       s.completed,
		NumClusterNodes: s.NumClusterNodes,
	}
	s.allocated = nil
	s.completed = nil
	return resp, nil
}

func (s *Store) ReleaseAssignedContainer(id domain.ContainerId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, id)
}

// --- test-only helpers, not part of the requeststore.Store contract ---

func (s *Store) QueueAllocated(c domain.Container) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocated = append(s.allocated, c)
}

func (s *Store) QueueCompleted(c domain.ContainerStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, c)
}

func (s *Store) Pending() []*requeststore.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*requeststore.Request, len(s.pending))
	copy(out, s.pending)
	return out
}

func (s *Store) Released() []domain.ContainerId {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ContainerId, len(s.released))
	copy(out, s.released)
	return out
}
