// Package main is the CLI entry point for deepfocus.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/deepfocus/internal/config"
	"github.com/eliteGoblin/focusd/deepfocus/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var (
	configPath string
	dataDir    string
	jsonOutput bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "deepfocus",
	Short: "Deep focus mode - blocks distracting sites while you code",
	Long: `deepfocus watches the foreground application and keyboard activity to
detect coding sessions, and answers the browser extension's questions about
whether a site may be visited right now.

Run 'deepfocus serve' in the foreground or 'deepfocus start' to launch it
in the background.`,
	Version:      Version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./config.yaml or ~/.deepfocus/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default ~/.deepfocus)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig applies --config and --data-dir on top of the loaded settings.
func loadConfig() (*config.Config, infra.Paths, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, infra.Paths{}, err
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	return cfg, infra.ResolvePaths(cfg.Storage.DataDir), nil
}

// passthroughFlags forwards global flags to a spawned daemon.
func passthroughFlags() []string {
	var args []string
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}
	return args
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("deepfocus %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
