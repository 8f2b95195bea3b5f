package infra

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// ErrUnsupportedPlatform is returned by sensors on platforms without a backend.
var ErrUnsupportedPlatform = errors.New("foreground detection not supported on this platform")

const frontmostAppScript = `tell application "System Events"
	set frontApp to name of first application process whose frontmost is true
end tell`

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner executes real system commands.
type ExecRunner struct{}

// Output runs a command bound to ctx and returns its stdout.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ForegroundSensor implements domain.WindowSensor with osascript on macOS
// and xdotool on Linux.
type ForegroundSensor struct {
	goos   string
	runner CommandRunner
	pm     domain.ProcessManager
	logger *zap.Logger
}

// NewForegroundSensor creates a sensor for the running platform.
func NewForegroundSensor(pm domain.ProcessManager, logger *zap.Logger) *ForegroundSensor {
	return NewForegroundSensorWithDeps(runtime.GOOS, ExecRunner{}, pm, logger)
}

// NewForegroundSensorWithDeps creates a sensor with injectable dependencies (for testing).
func NewForegroundSensorWithDeps(goos string, runner CommandRunner, pm domain.ProcessManager, logger *zap.Logger) *ForegroundSensor {
	return &ForegroundSensor{goos: goos, runner: runner, pm: pm, logger: logger}
}

// Foreground returns the frontmost application. Category is left for the caller.
func (s *ForegroundSensor) Foreground(ctx context.Context) (domain.ProcessSnapshot, error) {
	switch s.goos {
	case "darwin":
		return s.foregroundDarwin(ctx)
	case "linux":
		return s.foregroundLinux(ctx)
	default:
		return domain.ProcessSnapshot{}, ErrUnsupportedPlatform
	}
}

func (s *ForegroundSensor) foregroundDarwin(ctx context.Context) (domain.ProcessSnapshot, error) {
	out, err := s.runner.Output(ctx, "osascript", "-e", frontmostAppScript)
	if err != nil {
		return domain.ProcessSnapshot{}, fmt.Errorf("osascript: %w", err)
	}
	name := strings.TrimSpace(string(out))
	if name == "" {
		return domain.ProcessSnapshot{}, errors.New("osascript returned no application")
	}
	// Window titles need extra permissions on macOS.
	return domain.ProcessSnapshot{ProcessName: name}, nil
}

func (s *ForegroundSensor) foregroundLinux(ctx context.Context) (domain.ProcessSnapshot, error) {
	out, err := s.runner.Output(ctx, "xdotool", "getactivewindow")
	if err != nil {
		return domain.ProcessSnapshot{}, fmt.Errorf("xdotool getactivewindow: %w", err)
	}
	windowID := strings.TrimSpace(string(out))

	out, err = s.runner.Output(ctx, "xdotool", "getwindowpid", windowID)
	if err != nil {
		return domain.ProcessSnapshot{}, fmt.Errorf("xdotool getwindowpid: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return domain.ProcessSnapshot{}, fmt.Errorf("invalid window pid %q: %w", out, err)
	}

	title := ""
	if out, err := s.runner.Output(ctx, "xdotool", "getwindowname", windowID); err == nil {
		title = strings.TrimSpace(string(out))
	} else {
		s.logDebug("failed to read window title", zap.Error(err))
	}

	name, err := s.pm.NameByPID(pid)
	if err != nil {
		return domain.ProcessSnapshot{}, fmt.Errorf("process %d: %w", pid, err)
	}
	return domain.ProcessSnapshot{ProcessName: name, WindowTitle: title}, nil
}

func (s *ForegroundSensor) logDebug(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}

// Ensure ForegroundSensor implements domain.WindowSensor.
var _ domain.WindowSensor = (*ForegroundSensor)(nil)
