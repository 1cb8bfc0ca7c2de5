// Package placement implements the locality-aware placement strategy
// (C5): a pure function turning pending task locality hints into a list
// of node/rack preferences for new container requests.
package placement

import (
	"math"
	"sort"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// Preference is a single container's locality preference. Nodes == nil
// means "any host" — the strategy never returns such an entry itself
// (the allocator pads with any-host requests separately), but callers
// should treat a zero-value Preference that way.
type Preference struct {
	Nodes []domain.Host
	Racks []domain.Rack
}

// Input bundles everything the strategy needs to rank candidate hosts.
type Input struct {
	// NumContainersNeeded is the upper bound on preferences to return.
	NumContainersNeeded int
	// NumLocalityAwareTasks is the total count backing HostToLocalTaskCounts;
	// a host's share of new containers is proportional to its fraction of
	// this total.
	NumLocalityAwareTasks int
	HostToLocalTaskCounts map[domain.Host]int
	// AllocatedHostToContainerCount discounts hosts that already carry
	// running/starting containers, so the strategy does not keep piling
	// new requests onto an already-saturated host.
	AllocatedHostToContainerCount map[domain.Host]int
	// CurrentMatchedLocalityRequests discounts hosts that already have an
	// outstanding, locality-matched pending request, to avoid asking for
	// the same host twice.
	CurrentMatchedLocalityRequests map[domain.Host]int
	// RackOf resolves a host to its rack for the returned preference. A
	// nil RackOf, or a host it cannot resolve, yields an empty rack list
	// for that preference (still node-localized, just not rack-localized).
	RackOf func(domain.Host) domain.Rack
}

// Strategy computes up to input.NumContainersNeeded locality preferences.
// Hosts with denser pending-task counts are favored; hosts already
// saturated with allocated containers or outstanding matched requests
// are discounted one-for-one. The result never exceeds
// NumContainersNeeded entries and is never padded — any remaining
// capacity is the caller's to fill with any-host requests.
func Strategy(input Input) []Preference {
	if input.NumContainersNeeded <= 0 || input.NumLocalityAwareTasks <= 0 || len(input.HostToLocalTaskCounts) == 0 {
		return nil
	}

	hosts := make([]domain.Host, 0, len(input.HostToLocalTaskCounts))
	for h := range input.HostToLocalTaskCounts {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool {
		ci, cj := input.HostToLocalTaskCounts[hosts[i]], input.HostToLocalTaskCounts[hosts[j]]
		if ci != cj {
			return ci > cj
		}
		return hosts[i] < hosts[j]
	})

	var results []Preference
	remaining := input.NumContainersNeeded

	for _, host := range hosts {
		if remaining <= 0 {
			break
		}
		localCount := input.HostToLocalTaskCounts[host]
		if localCount <= 0 {
			continue
		}

		share := int(math.Ceil(float64(localCount*input.NumContainersNeeded) / float64(input.NumLocalityAwareTasks)))
		discount := input.AllocatedHostToContainerCount[host] + input.CurrentMatchedLocalityRequests[host]
		need := share - discount
		if need <= 0 {
			continue
		}
		if need > remaining {
			need = remaining
		}

		var racks []domain.Rack
		if input.RackOf != nil {
			if rack := input.RackOf(host); rack != "" {
				racks = []domain.Rack{rack}
			}
		}

		for i := 0; i < need; i++ {
			results = append(results, Preference{Nodes: []domain.Host{host}, Racks: racks})
		}
		remaining -= need
	}

	return results
}
