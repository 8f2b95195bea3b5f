package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/deepfocus/internal/infra"
)

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Run deepfocus at login",
	Long: `Installs a LaunchAgent (macOS) or systemd user unit (Linux) that runs
'deepfocus serve' when you log in and restarts it if it crashes.`,
}

var autostartInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and load the login service",
	RunE:  runAutostartInstall,
}

var autostartUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Unload and remove the login service",
	RunE:  runAutostartUninstall,
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the login service is installed",
	RunE:  runAutostartStatus,
}

func init() {
	autostartCmd.AddCommand(autostartInstallCmd)
	autostartCmd.AddCommand(autostartUninstallCmd)
	autostartCmd.AddCommand(autostartStatusCmd)
}

func newAutostart() (*infra.Autostart, infra.Paths, error) {
	_, paths, err := loadConfig()
	if err != nil {
		return nil, paths, err
	}
	a, err := infra.NewAutostart(runtime.GOOS, infra.GetRealUserHome(), paths.LogPath, nil)
	return a, paths, err
}

// serviceArgs returns the executable and the arguments the unit should run.
// Units start from /, so every path is made absolute.
func serviceArgs(paths infra.Paths) (string, []string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	args := []string{"serve"}
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return "", nil, err
		}
		args = append(args, "--config", abs)
	}
	if dataDir != "" {
		abs, err := filepath.Abs(paths.DataDir)
		if err != nil {
			return "", nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	return exe, args, nil
}

func runAutostartInstall(cmd *cobra.Command, args []string) error {
	a, paths, err := newAutostart()
	if err != nil {
		return err
	}
	exe, svcArgs, err := serviceArgs(paths)
	if err != nil {
		return err
	}
	if a.IsInstalled() && !a.NeedsUpdate(exe, svcArgs...) {
		fmt.Printf("Autostart already installed: %s\n", a.Path())
		return nil
	}
	if err := a.Install(cmd.Context(), exe, svcArgs...); err != nil {
		return err
	}
	fmt.Printf("Autostart installed: %s\n", a.Path())
	return nil
}

func runAutostartUninstall(cmd *cobra.Command, args []string) error {
	a, _, err := newAutostart()
	if err != nil {
		return err
	}
	if !a.IsInstalled() {
		fmt.Println("Autostart not installed")
		return nil
	}
	if err := a.Uninstall(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Autostart removed")
	return nil
}

func runAutostartStatus(cmd *cobra.Command, args []string) error {
	a, paths, err := newAutostart()
	if err != nil {
		return err
	}
	if !a.IsInstalled() {
		fmt.Println("Autostart: not installed")
		return nil
	}
	exe, svcArgs, err := serviceArgs(paths)
	if err != nil {
		return err
	}
	state := "up to date"
	if a.NeedsUpdate(exe, svcArgs...) {
		state = "outdated, run 'deepfocus autostart install'"
	}
	fmt.Printf("Autostart: installed (%s)\n  %s\n", state, a.Path())
	return nil
}
