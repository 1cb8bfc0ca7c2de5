package allocator

import (
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/placement"
	"github.com/G-Research/executor-allocator/internal/requeststore"
)

// updateResourceRequests implements spec.md §4.6.3. Must be called with
// mu held.
func (a *Allocator) updateResourceRequests() {
	pending := a.allPendingRequests()
	missing := a.targetNumExecutors - len(pending) - a.numExecutorsStarting - len(a.runningExecutors)

	var localityMatched, staleLocality, anyHost []*requeststore.Request
	for _, r := range pending {
		switch {
		case r.IsAnyHost():
			anyHost = append(anyHost, r)
		case intersectsPreferredHosts(r.Nodes, a.hostToLocalTaskCounts):
			localityMatched = append(localityMatched, r)
		default:
			staleLocality = append(staleLocality, r)
		}
	}

	switch {
	case missing > 0:
		a.growRequests(missing, staleLocality, anyHost, localityMatched)
	case missing < 0 && len(pending) > 0:
		a.shrinkRequests(-missing, staleLocality, anyHost, localityMatched)
	}
}

func (a *Allocator) growRequests(missing int, staleLocality, anyHost, localityMatched []*requeststore.Request) {
	for _, r := range staleLocality {
		a.requestStore.RemoveContainerRequest(r)
	}
	a.addCanceled(len(staleLocality))

	available := missing + len(staleLocality)
	potential := available + len(anyHost)

	prefs := placement.Strategy(placement.Input{
		NumContainersNeeded:            potential,
		NumLocalityAwareTasks:          a.numLocalityAwareTasks,
		HostToLocalTaskCounts:          a.hostToLocalTaskCounts,
		AllocatedHostToContainerCount:  countContainersByHost(a.allocatedHostToContainers),
		CurrentMatchedLocalityRequests: countRequestsByHost(localityMatched),
		RackOf:                         a.rackOf,
	})

	var newRequests []placement.Preference
	for _, p := range prefs {
		if len(p.Nodes) > 0 {
			newRequests = append(newRequests, p)
		}
	}

	if available >= len(newRequests) {
		for pad := available - len(newRequests); pad > 0; pad-- {
			newRequests = append(newRequests, placement.Preference{})
		}
	} else {
		toCancel := min(len(newRequests)-available, len(anyHost))
		for _, r := range anyHost[:toCancel] {
			a.requestStore.RemoveContainerRequest(r)
		}
		a.addCanceled(toCancel)
	}

	for _, p := range newRequests {
		a.submitRequest(p)
	}
}

func (a *Allocator) shrinkRequests(excess int, staleLocality, anyHost, localityMatched []*requeststore.Request) {
	ordered := make([]*requeststore.Request, 0, len(staleLocality)+len(anyHost)+len(localityMatched))
	ordered = append(ordered, staleLocality...)
	ordered = append(ordered, anyHost...)
	ordered = append(ordered, localityMatched...)

	toCancel := min(len(ordered), excess)
	for _, r := range ordered[:toCancel] {
		a.requestStore.RemoveContainerRequest(r)
	}
	a.addCanceled(toCancel)
}

func (a *Allocator) submitRequest(p placement.Preference) {
	a.requestStore.AddContainerRequest(requeststore.Request{
		Priority:      requestPriority,
		Spec:          a.spec,
		Nodes:         p.Nodes,
		Racks:         p.Racks,
		RelaxLocality: true,
		LabelExpr:     a.labelExpr,
	})
	if a.metrics != nil {
		a.metrics.RequestsAdded.Inc()
	}
}

// addCanceled records n canceled requests against the churn metric.
// n is often 0 (nothing stale, nothing to trim), so this only touches
// the counter when there's something to report.
func (a *Allocator) addCanceled(n int) {
	if n > 0 && a.metrics != nil {
		a.metrics.RequestsCanceled.Add(float64(n))
	}
}

// rackOf resolves host synchronously for use as placement.Input.RackOf.
// Errors are logged and treated as "no rack known" — a request without
// a rack hint is still valid, just less targeted.
func (a *Allocator) rackOf(host domain.Host) domain.Rack {
	if a.rackResolver == nil {
		return ""
	}
	rack, err := a.rackResolver.Resolve(host)
	if err != nil {
		log.Debugf("rack resolution failed for host %s: %s", host, err)
		return ""
	}
	return rack
}

func intersectsPreferredHosts(nodes []domain.Host, preferred map[domain.Host]int) bool {
	for _, n := range nodes {
		if _, ok := preferred[n]; ok {
			return true
		}
	}
	return false
}

func countRequestsByHost(requests []*requeststore.Request) map[domain.Host]int {
	counts := map[domain.Host]int{}
	for _, r := range requests {
		for _, n := range r.Nodes {
			counts[n]++
		}
	}
	return counts
}

func countContainersByHost(byHost map[domain.Host]map[domain.ContainerId]bool) map[domain.Host]int {
	counts := map[domain.Host]int{}
	for host, containers := range byHost {
		counts[host] = len(containers)
	}
	return counts
}
