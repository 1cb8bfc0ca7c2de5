package allocator

import (
	"fmt"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// NoSuchExecutorError is returned by enqueueGetLossReason when the
// queried executor id is neither running nor has a stored loss reason.
type NoSuchExecutorError struct {
	ExecutorId domain.ExecutorId
}

func (e *NoSuchExecutorError) Error() string {
	return fmt.Sprintf("no such executor: %s", e.ExecutorId)
}

func errNoSuchExecutor(executorId domain.ExecutorId) error {
	return &NoSuchExecutorError{ExecutorId: executorId}
}

// FatalLaunchError wraps a recovered launcher panic. It is the closest
// idiomatic-Go analogue to a JVM-fatal throwable escaping launch: per
// spec.md §9, a fatal launch error must skip the numStarting decrement
// and container-release cleanup and simply terminate.
type FatalLaunchError struct {
	Cause interface{}
}

func (e *FatalLaunchError) Error() string {
	return fmt.Sprintf("fatal launch error: %v", e.Cause)
}
