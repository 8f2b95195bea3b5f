package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/deepfocus/internal/api/dto"
	"github.com/eliteGoblin/focusd/deepfocus/internal/config"
	"github.com/eliteGoblin/focusd/deepfocus/internal/daemon"
	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/infra"
	"github.com/eliteGoblin/focusd/deepfocus/internal/monitor"
	"github.com/eliteGoblin/focusd/deepfocus/internal/policy"
	"github.com/eliteGoblin/focusd/deepfocus/internal/usecase"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	Long:  `Spawns 'deepfocus serve' detached from the terminal and waits for its API to answer.`,
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and focus status",
	Long:  `Shows whether the daemon is running, the live focus state, and running applications by category.`,
	RunE:  runStatus,
}

var checkOffline bool

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Ask whether a URL would be blocked right now",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var scoreCmd = &cobra.Command{
	Use:   "score <domain> <0..1>",
	Short: "Set a site's productivity score (smart blocking)",
	Args:  cobra.ExactArgs(2),
	RunE:  runScore,
}

var overrideCmd = &cobra.Command{
	Use:   "override <url>",
	Short: "Record that you bypassed a block",
	Args:  cobra.ExactArgs(1),
	RunE:  runOverride,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.Key != "" {
			cfg.Storage.Key = "<redacted>"
		}
		data, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Write(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkOffline, "offline", false, "Evaluate against stored rules without a running daemon (assumes no focus session)")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	pm := infra.NewProcessManager()
	if pid, ok := daemon.RunningPID(paths.PIDFile, pm); ok {
		fmt.Printf("deepfocus is already running (pid %d)\n", pid)
		return nil
	}

	pid, err := daemon.StartDetached(passthroughFlags()...)
	if err != nil {
		return err
	}
	fmt.Printf("Started deepfocus (pid %d)\n", pid)

	if err := newAPIClient(cfg).waitHealthy(cmd.Context(), 5*time.Second); err != nil {
		return fmt.Errorf("%w; see %s", err, paths.LogPath)
	}
	fmt.Printf("API listening on %s:%d\n", cfg.API.Host, cfg.API.Port)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	pm := infra.NewProcessManager()

	fmt.Println("\n=== deepfocus Status ===")

	pid, running := daemon.RunningPID(paths.PIDFile, pm)
	if running {
		fmt.Printf("Daemon: RUNNING (pid %d)\n", pid)
		var st dto.StatusResponse
		if err := newAPIClient(cfg).do(cmd.Context(), http.MethodGet, "/api/status", nil, nil, &st); err != nil {
			fmt.Printf("API: unreachable (%v)\n", err)
		} else {
			fmt.Printf("Coding: %t\n", st.IsActivelyCoding)
			fmt.Printf("Foreground app: %s (IDE: %t)\n", st.CurrentApp, st.IsIDEActive)
			fmt.Printf("Typing: %s, %.1f keys/min\n", st.KeystrokeActivity, st.KeystrokesPerMinute)
			if st.CurrentSession != nil {
				fmt.Printf("Session: %.1f min since %s\n",
					st.CurrentSession.DurationMinutes, st.CurrentSession.StartTime.Format(time.Kitchen))
			}
		}
	} else {
		fmt.Println("Daemon: NOT RUNNING")
		fmt.Println("\nRun 'deepfocus start' to enable focus mode.")
	}
	fmt.Printf("Data dir: %s\n", paths.DataDir)

	sampler := monitor.NewSampler(monitor.DefaultSamplerConfig(), nil, pm, nil)
	groups, err := sampler.RunningByCategory()
	if err == nil {
		fmt.Println("\nRunning applications:")
		cats := make([]string, 0, len(groups))
		for c := range groups {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Printf("  %s: %v\n", c, groups[domain.Category(c)])
		}
	}

	fmt.Println("========================")
	return nil
}

// idleSession is used for offline checks: no focus session is running.
type idleSession struct{}

func (idleSession) IsCoding() bool                  { return false }
func (idleSession) SessionStart() (time.Time, bool) { return time.Time{}, false }
func (idleSession) SessionMinutes() float64         { return 0 }

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}

	var decision domain.BlockDecision
	if checkOffline {
		store, err := openStore(cfg, paths)
		if err != nil {
			return err
		}
		defer store.Close()
		checker := usecase.NewAccessChecker(store, nil, policy.NewEngine(nil), idleSession{}, nil, nil)
		decision, err = checker.Check(cmd.Context(), args[0])
		if err != nil {
			return err
		}
	} else {
		q := url.Values{"url": {args[0]}}
		if err := newAPIClient(cfg).do(cmd.Context(), http.MethodPost, "/api/check-block", q, nil, &decision); err != nil {
			return err
		}
	}

	printDecision(args[0], decision)
	return nil
}

func printDecision(target string, d domain.BlockDecision) {
	if !d.ShouldBlock {
		fmt.Printf("ALLOW   %s\n", target)
		return
	}
	fmt.Printf("%-7s %s\n", "BLOCK", target)
	fmt.Printf("  action: %s\n", d.Action)
	if d.DelaySeconds != nil {
		fmt.Printf("  delay: %s\n", time.Duration(*d.DelaySeconds)*time.Second)
	}
	if d.RemainingFocusTime != nil {
		fmt.Printf("  focus remaining: %s\n", time.Duration(*d.RemainingFocusTime)*time.Second)
	}
	if d.ReminderMessage != nil {
		fmt.Printf("  %s\n", *d.ReminderMessage)
	}
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	score, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid score %q: %w", args[1], err)
	}
	var resp dto.ScoreResponse
	req := dto.ScoreRequest{Domain: args[0], Score: &score}
	if err := newAPIClient(cfg).do(cmd.Context(), http.MethodPut, "/api/scores", nil, req, &resp); err != nil {
		return err
	}
	fmt.Printf("%s productivity score: %.2f\n", resp.Domain, resp.Score)
	return nil
}

func runOverride(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	var resp dto.OverrideResponse
	q := url.Values{"url": {args[0]}}
	if err := newAPIClient(cfg).do(cmd.Context(), http.MethodPost, "/api/overrides", q, nil, &resp); err != nil {
		return err
	}
	fmt.Printf("%s overridden %d time(s)\n", resp.Domain, resp.OverrideCount)
	return nil
}
