// Package fake provides a launcher.Launcher test double whose Launch
// outcome is scripted per call, so allocator tests can exercise both
// the launch-success and launch-failure bookkeeping paths.
package fake

import (
	"sync"

	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/launcher"
)

type call struct {
	Container domain.Container
	Params    launcher.Params
}

type Launcher struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by every Launch call. Use PerExecutor
	// for per-call control.
	Err error
	// PerExecutor overrides Err for a specific executor id, if present.
	PerExecutor map[domain.ExecutorId]error

	calls []call
}

func New() *Launcher {
	return &Launcher{PerExecutor: map[domain.ExecutorId]error{}}
}

func (l *Launcher) Launch(container domain.Container, params launcher.Params) error {
	l.mu.Lock()
	l.calls = append(l.calls, call{Container: container, Params: params})
	err, ok := l.PerExecutor[params.ExecutorId]
	l.mu.Unlock()

	if ok {
		return err
	}
	return l.Err
}

func (l *Launcher) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *Launcher) LastParams() launcher.Params {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[len(l.calls)-1].Params
}
