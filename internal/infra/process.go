// Package infra implements infrastructure concerns (processes, foreground
// window, keyboard, encrypted storage).
package infra

import (
	"os"
	"sort"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// ProcessTable implements domain.ProcessManager over gopsutil.
type ProcessTable struct{}

// NewProcessManager creates a gopsutil-backed process table.
func NewProcessManager() domain.ProcessManager {
	return &ProcessTable{}
}

// NameByPID returns the executable name of pid.
func (ProcessTable) NameByPID(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return p.Name()
}

// RunningNames returns the distinct names of running processes, sorted.
func (ProcessTable) RunningNames() ([]string, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(procs))
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" || seen[name] {
			continue // exited, or a duplicate
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// IsRunning reports whether pid exists.
func (ProcessTable) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// GetCurrentPID returns the current process PID.
func (ProcessTable) GetCurrentPID() int {
	return os.Getpid()
}

var _ domain.ProcessManager = ProcessTable{}
