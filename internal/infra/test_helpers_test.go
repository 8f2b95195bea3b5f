package infra

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// mockProcessManager is a test double for domain.ProcessManager.
type mockProcessManager struct {
	names   map[int]string
	running map[int]bool
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{names: make(map[int]string), running: make(map[int]bool)}
}

func (m *mockProcessManager) NameByPID(pid int) (string, error) {
	name, ok := m.names[pid]
	if !ok {
		return "", fmt.Errorf("process %d not found", pid)
	}
	return name, nil
}

func (m *mockProcessManager) RunningNames() ([]string, error) {
	out := make([]string, 0, len(m.names))
	for _, n := range m.names {
		out = append(out, n)
	}
	return out, nil
}

func (m *mockProcessManager) IsRunning(pid int) bool { return m.running[pid] }
func (m *mockProcessManager) GetCurrentPID() int     { return os.Getpid() }

// mockRunner returns canned output keyed by "name arg1 arg2...".
type mockRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newMockRunner() *mockRunner {
	return &mockRunner{outputs: make(map[string]string), errs: make(map[string]error)}
}

func (r *mockRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, key)
	if err, ok := r.errs[key]; ok {
		return nil, err
	}
	out, ok := r.outputs[key]
	if !ok {
		return nil, fmt.Errorf("unexpected command: %s", key)
	}
	return []byte(out), nil
}
