package launcher

import (
	"fmt"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// ExecLauncher starts the executor worker as a local subprocess. The
// worker's own startup protocol (how it registers with the driver,
// what it does with localResources) is out of scope here; this
// launcher only owns getting the process running and surfacing a
// non-nil error for anything that fails before the process is up.
type ExecLauncher struct {
	// Command builds the argv for a given container/params pair. Tests
	// substitute a fake binary; production wiring points this at the
	// real worker entrypoint script.
	Command func(container domain.Container, params Params) *exec.Cmd
}

func (l ExecLauncher) Launch(container domain.Container, params Params) error {
	cmd := l.Command(container, params)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "starting executor %s on %s", params.ExecutorId, container.Host)
	}
	return nil
}

// DefaultCommand builds the conventional worker invocation: the given
// binary, with the driver URL, executor id, host, core count and app id
// as flags. Memory is passed as EXECUTOR_MEMORY_MB and each
// localResources entry as its own variable in the process environment
// rather than argv, and that environment holds only these variables.
// Security material is not passed to the process.
func DefaultCommand(binary string) func(domain.Container, Params) *exec.Cmd {
	return func(container domain.Container, params Params) *exec.Cmd {
		cmd := exec.Command(binary,
			"--driver-url", params.DriverURL,
			"--executor-id", string(params.ExecutorId),
			"--hostname", string(container.Host),
			"--cores", fmt.Sprintf("%d", params.Cores),
			"--app-id", params.AppId,
		)
		cmd.Env = append(cmd.Env, fmt.Sprintf("EXECUTOR_MEMORY_MB=%d", params.MemoryMB))
		for k, v := range params.LocalResources {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
		return cmd
	}
}
