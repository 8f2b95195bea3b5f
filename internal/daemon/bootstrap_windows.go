package daemon

import (
	"errors"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/infra"
)

// StartDetached is not supported on Windows; run "deepfocus serve" instead.
func StartDetached(args ...string) (int, error) {
	return 0, errors.New("background start is not supported on windows")
}

// RunningPID returns the pid recorded in pidFile if that process is alive.
func RunningPID(pidFile string, pm domain.ProcessManager) (int, bool) {
	pid, err := infra.ReadPIDFile(pidFile)
	if err != nil || pid == 0 {
		return 0, false
	}
	return pid, pm.IsRunning(pid)
}
