// Package domain holds the identifiers and value types shared across the
// allocator's components. None of them carry behaviour beyond simple
// construction helpers; the state machines that mutate them live in
// internal/allocator.
package domain

// ContainerId is assigned by the resource manager and is stable for the
// lifetime of a container.
type ContainerId string

// ExecutorId is rendered from a monotonically increasing counter. It is
// never reused, even across a lost/killed executor.
type ExecutorId string

// Host is a DNS name. Rack is a resolved rack path. AnyHost is the
// sentinel used by the request store and placement strategy to mean
// "no locality preference".
type Host string

type Rack string

const AnyHost Host = "*"

// Container is a granted allocation from the resource manager.
type Container struct {
	Id       ContainerId
	Host     Host
	MemoryMB int64
	Vcores   int32
}

// ExitStatus is the resource manager's numeric completion code for a
// container. The memory-limit sentinels below match the values a
// YARN-style RM uses for memory-limit kills. The classifier treats every
// constant below specially; any other value is an unclassified exit.
type ExitStatus int32

const (
	ExitStatusSuccess                 ExitStatus = 0
	ExitStatusPreempted               ExitStatus = -102
	ExitStatusVmemExceeded            ExitStatus = -103
	ExitStatusPmemExceeded            ExitStatus = -104
	ExitStatusKilledByRM              ExitStatus = -106
	ExitStatusKilledByAppMaster       ExitStatus = -107
	ExitStatusKilledAfterAppCompleted ExitStatus = -108
	ExitStatusAborted                 ExitStatus = -100
	ExitStatusDisksFailed             ExitStatus = -101
)

// ContainerStatus is the resource manager's report of a finished
// container, as returned in an AllocateResponse.
type ContainerStatus struct {
	ContainerId ContainerId
	Host        Host
	ExitStatus  ExitStatus
	Diagnostics string
}

// ExitReason is what the allocator tells the driver (and any queued
// loss-reason query) about why an executor is gone.
type ExitReason struct {
	ExitStatus      ExitStatus
	ExitCausedByApp bool
	Message         string
}

// ExplicitTerminationReason is used whenever a container's completion is
// the direct result of an allocator-initiated release (killExecutor, or
// releasing surplus containers).
func ExplicitTerminationReason(status ExitStatus) ExitReason {
	return ExitReason{
		ExitStatus:      status,
		ExitCausedByApp: false,
		Message:         "explicit termination request",
	}
}

// LossReasonReply is the reply-handle a driver-facing RPC server (out
// of scope) passes to enqueueGetLossReason. Exactly one of reason/err
// is meaningful: a nil err with a populated reason is a successful
// lookup, a non-nil err (e.g. "no such executor") is a structured
// failure the caller should surface to its RPC client.
type LossReasonReply func(reason ExitReason, err error)
