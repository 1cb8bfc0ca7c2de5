// Package driver is the allocator's outbound/inbound RPC boundary to
// the application driver (C9): retrieving the last-allocated executor
// id at construction (so ids survive an allocator restart without
// collision, spec.md §3), and notifying the driver when an executor is
// removed. The RPC endpoint itself is an out-of-scope external
// collaborator (spec.md §1) — this package specifies the contract and
// a concrete gRPC-backed client.
package driver

import (
	"context"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// Client is the allocator's view of the driver RPC boundary.
type Client interface {
	// RetrieveLastAllocatedExecutorId returns the highest executor id the
	// driver has already handed out, or 0 if none. Called once at
	// allocator construction.
	RetrieveLastAllocatedExecutorId(ctx context.Context) (int, error)

	// RemoveExecutor is a fire-and-forget notification that executorId
	// has exited for the given reason.
	RemoveExecutor(executorId domain.ExecutorId, reason domain.ExitReason)
}
