package allocator

import (
	"fmt"
	"regexp"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// memoryUsageRegex extracts the RM's own memory-usage summary out of a
// container's diagnostics string (spec.md §4.6.6), e.g. "2.1 GB of 2 GB
// physical memory used".
var memoryUsageRegex = regexp.MustCompile(`[0-9.]+ [KMG]B of [0-9.]+ [KMG]B (?:physical|virtual) memory used`)

// processCompletedContainers implements spec.md §4.6.5. Must be called
// with mu held.
func (a *Allocator) processCompletedContainers(statuses []domain.ContainerStatus) {
	for _, status := range statuses {
		a.processCompletedContainer(status)
	}
}

func (a *Allocator) processCompletedContainer(status domain.ContainerStatus) {
	cid := status.ContainerId

	alreadyReleased := a.releasedContainers[cid]
	delete(a.releasedContainers, cid)

	eid, hasExecutor := a.containerIdToExecutorId[cid]
	if hasExecutor {
		delete(a.runningExecutors, eid)
	}

	exitCausedByApp, message, unknownFault := classifyExit(status.ExitStatus, status.Diagnostics)
	reason := domain.ExitReason{ExitStatus: status.ExitStatus, ExitCausedByApp: exitCausedByApp, Message: message}
	if alreadyReleased {
		// A container we released ourselves (kill or surplus) never
		// reflects an application fault, regardless of what the RM
		// reports for it.
		reason = domain.ExplicitTerminationReason(status.ExitStatus)
		unknownFault = false
	}

	if hasExecutor && reason.ExitCausedByApp {
		a.failures.RecordFailure(string(eid))
		if a.metrics != nil {
			a.metrics.ExecutorsFailed.Inc()
		}
	}
	if unknownFault && a.blacklist != nil {
		host := status.Host
		a.blacklist.HandleResourceAllocationFailure(&host)
	}

	if host, ok := a.allocatedContainerToHost[cid]; ok {
		delete(a.allocatedContainerToHost, cid)
		if containers, ok := a.allocatedHostToContainers[host]; ok {
			delete(containers, cid)
			if len(containers) == 0 {
				delete(a.allocatedHostToContainers, host)
			}
		}
	}

	if hasExecutor {
		delete(a.containerIdToExecutorId, cid)
		delete(a.executorIdToContainer, eid)

		if handles, queued := a.pendingLossReasonRequests[eid]; queued {
			delete(a.pendingLossReasonRequests, eid)
			for _, reply := range handles {
				reply(reason, nil)
			}
		} else {
			a.releasedExecutorLossReasons[eid] = reason
		}
	}

	if !alreadyReleased {
		a.numUnexpectedContainerRelease++
		if a.driverClient != nil && hasExecutor {
			a.driverClient.RemoveExecutor(eid, reason)
		}
	}
}

// classifyExit implements the spec.md §4.6.6 table. unknownFault is
// true only for the "any other" row, which additionally informs the
// blacklist tracker.
func classifyExit(status domain.ExitStatus, diagnostics string) (exitCausedByApp bool, message string, unknownFault bool) {
	switch status {
	case domain.ExitStatusSuccess:
		return false, "YARN event, not job error", false
	case domain.ExitStatusPreempted:
		return false, "resource-sharing preemption", false
	case domain.ExitStatusVmemExceeded:
		return true, memoryExceededMessage(diagnostics), false
	case domain.ExitStatusPmemExceeded:
		return true, memoryExceededMessage(diagnostics), false
	case domain.ExitStatusKilledByRM,
		domain.ExitStatusKilledByAppMaster,
		domain.ExitStatusKilledAfterAppCompleted,
		domain.ExitStatusAborted,
		domain.ExitStatusDisksFailed:
		return false, diagnostics, false
	default:
		return true, diagnostics, true
	}
}

func memoryExceededMessage(diagnostics string) string {
	match := memoryUsageRegex.FindString(diagnostics)
	if match == "" {
		return "container killed for exceeding memory limits; consider increasing executor memory overhead"
	}
	return fmt.Sprintf("container killed for exceeding memory limits: %s; consider increasing executor memory overhead", match)
}
