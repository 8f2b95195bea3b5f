package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"go.uber.org/zap"
)

// AutostartLabel identifies the login service on every platform.
const AutostartLabel = "com.focusd.deepfocus"

const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>
`

const systemdUnitTemplate = `[Unit]
Description=deepfocus focus session daemon ({{.Label}})
After=graphical-session.target

[Service]
ExecStart={{.ExecutablePath}}{{range .Args}} {{.}}{{end}}
Restart=on-failure
RestartSec=10

[Install]
WantedBy=default.target
`

type unitConfig struct {
	Label          string
	ExecutablePath string
	Args           []string
	LogPath        string
}

// Autostart installs deepfocus as a per-user login service: a LaunchAgent on
// macOS or a systemd user unit on Linux.
type Autostart struct {
	goos     string
	unitPath string
	logPath  string
	runner   CommandRunner
	logger   *zap.Logger
}

// NewAutostart creates a manager for the given platform. home is the user's
// home directory and logPath receives the service's stdout/stderr on macOS.
func NewAutostart(goos, home, logPath string, logger *zap.Logger) (*Autostart, error) {
	return NewAutostartWithDeps(goos, home, logPath, ExecRunner{}, logger)
}

// NewAutostartWithDeps creates a manager with an injectable runner (for testing).
func NewAutostartWithDeps(goos, home, logPath string, runner CommandRunner, logger *zap.Logger) (*Autostart, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var unitPath string
	switch goos {
	case "darwin":
		unitPath = filepath.Join(home, "Library", "LaunchAgents", AutostartLabel+".plist")
	case "linux":
		unitPath = filepath.Join(home, ".config", "systemd", "user", AutostartLabel+".service")
	default:
		return nil, fmt.Errorf("autostart on %s: %w", goos, ErrUnsupportedPlatform)
	}
	return &Autostart{goos: goos, unitPath: unitPath, logPath: logPath, runner: runner, logger: logger}, nil
}

// Path returns the unit file location.
func (a *Autostart) Path() string {
	return a.unitPath
}

// Render produces the unit file content for execPath invoked with args.
func (a *Autostart) Render(execPath string, args ...string) ([]byte, error) {
	tmplStr := systemdUnitTemplate
	if a.goos == "darwin" {
		tmplStr = launchAgentTemplate
	}
	tmpl, err := template.New("unit").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit template: %w", err)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, unitConfig{
		Label:          AutostartLabel,
		ExecutablePath: execPath,
		Args:           args,
		LogPath:        a.logPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render unit: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the unit file and loads it. An existing unit is replaced.
func (a *Autostart) Install(ctx context.Context, execPath string, args ...string) error {
	content, err := a.Render(execPath, args...)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.unitPath), 0755); err != nil {
		return err
	}
	if a.IsInstalled() {
		a.unload(ctx)
	}
	if err := os.WriteFile(a.unitPath, content, 0644); err != nil {
		return err
	}
	a.logger.Info("autostart unit written", zap.String("path", a.unitPath))
	return a.load(ctx)
}

// Uninstall unloads and removes the unit file.
func (a *Autostart) Uninstall(ctx context.Context) error {
	if !a.IsInstalled() {
		return nil
	}
	a.unload(ctx)
	return os.Remove(a.unitPath)
}

// IsInstalled reports whether the unit file exists.
func (a *Autostart) IsInstalled() bool {
	_, err := os.Stat(a.unitPath)
	return err == nil
}

// NeedsUpdate reports whether an installed unit differs from what Install would write.
func (a *Autostart) NeedsUpdate(execPath string, args ...string) bool {
	current, err := os.ReadFile(a.unitPath)
	if err != nil {
		return false
	}
	expected, err := a.Render(execPath, args...)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

func (a *Autostart) load(ctx context.Context) error {
	if a.goos == "darwin" {
		if _, err := a.runner.Output(ctx, "launchctl", "load", a.unitPath); err != nil {
			return fmt.Errorf("launchctl load: %w", err)
		}
		return nil
	}
	if _, err := a.runner.Output(ctx, "systemctl", "--user", "daemon-reload"); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w", err)
	}
	if _, err := a.runner.Output(ctx, "systemctl", "--user", "enable", "--now", filepath.Base(a.unitPath)); err != nil {
		return fmt.Errorf("systemctl enable: %w", err)
	}
	return nil
}

// unload is best effort; the unit may not be loaded.
func (a *Autostart) unload(ctx context.Context) {
	var err error
	if a.goos == "darwin" {
		_, err = a.runner.Output(ctx, "launchctl", "unload", a.unitPath)
	} else {
		_, err = a.runner.Output(ctx, "systemctl", "--user", "disable", "--now", filepath.Base(a.unitPath))
	}
	if err != nil {
		a.logger.Debug("unload autostart unit", zap.Error(err))
	}
}
