//go:build !windows

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/infra"
)

// ServeCommand builds the detached "serve" invocation of executable.
func ServeCommand(executable string, args ...string) *exec.Cmd {
	cmd := exec.Command(executable, append([]string{"serve"}, args...)...)

	// Detach from the terminal; output goes to the log file.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd
}

// StartDetached spawns "<self> serve args..." in its own session and
// returns the child's pid.
func StartDetached(args ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve executable: %w", err)
	}
	cmd := ServeCommand(executable, args...)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// The child outlives us; release it so it is not left as a zombie handle.
	_ = cmd.Process.Release()
	return pid, nil
}

// RunningPID returns the pid recorded in pidFile if that process is alive.
func RunningPID(pidFile string, pm domain.ProcessManager) (int, bool) {
	pid, err := infra.ReadPIDFile(pidFile)
	if err != nil || pid == 0 {
		return 0, false
	}
	return pid, pm.IsRunning(pid)
}
