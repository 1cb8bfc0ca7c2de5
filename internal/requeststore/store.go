// Package requeststore defines the allocator's view of the resource
// manager client (C2): add/remove container requests, query matching
// requests, heartbeat+receive via Allocate, and release granted
// containers. The RM client library itself is out of scope; this
// package only specifies the contract the allocator consumes plus one
// concrete implementation backed by a Kubernetes informer (C10).
package requeststore

import (
	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/resourcespec"
)

// Request is a single outstanding container request. Nodes == nil means
// "any host" (domain.AnyHost is used as the lookup key for such
// requests, never stored as a literal node).
type Request struct {
	Priority      int32
	Spec          resourcespec.Spec
	Nodes         []domain.Host
	Racks         []domain.Rack
	RelaxLocality bool
	LabelExpr     string
}

// IsAnyHost reports whether this request carries no locality hint.
func (r *Request) IsAnyHost() bool {
	return len(r.Nodes) == 0
}

// Location is the resource name AMRMClient-style getMatchingRequests is
// keyed on: a host, a rack, or the "*" (domain.AnyHost) wildcard. The
// wildcard returns every pending request at the given priority/spec
// regardless of its own locality hints — mirroring how a real RM
// aggregates all outstanding requests under the ANY_LOCATION resource
// name — while a host or rack value narrows to requests naming that
// host (in Nodes) or rack (in Racks).
type Location string

func HostLocation(h domain.Host) Location { return Location(h) }
func RackLocation(r domain.Rack) Location { return Location(r) }

const AnyLocation Location = Location(domain.AnyHost)

// AllocateResponse is the result of a single Allocate (heartbeat+receive)
// round trip.
type AllocateResponse struct {
	Allocated         []domain.Container
	Completed         []domain.ContainerStatus
	AvailableCPUCores int32
	AvailableMemoryMB int64
	NumClusterNodes   int
}

// Store is the contract the allocator depends on. Every method here maps
// 1:1 to spec.md §4.2.
type Store interface {
	// AddContainerRequest registers a new request and returns the handle
	// used to look it up again via GetMatchingRequests or remove it via
	// RemoveContainerRequest.
	AddContainerRequest(req Request) *Request
	RemoveContainerRequest(req *Request) // idempotent
	// GetMatchingRequests returns a two-level grouping; the allocator
	// only ever consumes the first inner list's first element per
	// match, mirroring the AMRMClient-style API this adapts.
	GetMatchingRequests(priority int32, location Location, spec resourcespec.Spec) [][]*Request
	Allocate(progress float32) (AllocateResponse, error)
	ReleaseAssignedContainer(id domain.ContainerId) // idempotent
}
