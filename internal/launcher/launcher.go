// Package launcher starts the out-of-process worker for a granted
// container (C11). The launcher itself is an out-of-scope external
// collaborator (spec.md §1) — this package only specifies the call
// contract and the bounded worker pool the allocator dispatches it on,
// so a possibly-long startup never runs while the allocator's lock is
// held (spec.md §5 / §9).
package launcher

import (
	"github.com/G-Research/executor-allocator/internal/domain"
)

// Security bundles the credentials an executor needs to authenticate
// back to the driver. Its contents are opaque to the allocator.
type Security struct {
	Token []byte
}

// Params is everything the launcher needs to start one executor's
// worker process, beyond the container it was granted.
type Params struct {
	DriverURL      string
	ExecutorId     domain.ExecutorId
	MemoryMB       int64
	Cores          int32
	AppId          string
	Security       Security
	LocalResources map[string]string
}

// Launcher starts a worker process inside a granted container. Launch
// blocks until the worker has started (or definitively failed to), so
// callers must run it off any shared lock — see Pool.
type Launcher interface {
	Launch(container domain.Container, params Params) error
}
