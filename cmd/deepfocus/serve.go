package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/deepfocus/internal/api"
	"github.com/eliteGoblin/focusd/deepfocus/internal/config"
	"github.com/eliteGoblin/focusd/deepfocus/internal/daemon"
	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/infra"
	"github.com/eliteGoblin/focusd/deepfocus/internal/logging"
	"github.com/eliteGoblin/focusd/deepfocus/internal/monitor"
	"github.com/eliteGoblin/focusd/deepfocus/internal/policy"
	"github.com/eliteGoblin/focusd/deepfocus/internal/usecase"
)

var (
	serveHost    string
	servePort    int
	resetDB      bool
	logToConsole bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor and HTTP API in the foreground",
	Long: `Starts the activity monitor and the HTTP API used by the browser extension.
Blocks until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "API listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "API listen port (overrides config)")
	serveCmd.Flags().BoolVar(&resetDB, "reset-db", false, "Drop all stored data before starting")
	serveCmd.Flags().BoolVar(&logToConsole, "console", false, "Also log to stderr")
}

func newLogger(cfg *config.Config, paths infra.Paths, console bool) (*zap.Logger, error) {
	file := cfg.Log.File
	if file == "" {
		file = paths.LogPath
	}
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       file,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    console || cfg.Log.Console,
	})
}

// openStore resolves the database key and opens the encrypted store.
func openStore(cfg *config.Config, paths infra.Paths) (*infra.EncryptedStore, error) {
	var provider domain.KeyProvider = infra.NewFileKeyProvider(paths.DataDir)
	if cfg.Storage.Key != "" {
		provider = infra.NewStaticKeyProvider(cfg.Storage.Key)
	}
	key, err := infra.EnsureKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load database key: %w", err)
	}
	return infra.NewEncryptedStore(paths.DataDir, key)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort != 0 {
		cfg.API.Port = servePort
	}

	logger, err := newLogger(cfg, paths, logToConsole)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, paths)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return err
	}
	defer store.Close()

	if resetDB {
		if err := store.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		logger.Warn("database reset", zap.String("path", store.Path()))
	}
	if seeded, err := store.SeedRules(ctx, policy.DefaultRules()); err != nil {
		logger.Warn("failed to seed default rules", zap.Error(err))
	} else if seeded {
		logger.Info("seeded default rules", zap.Int("count", len(policy.DefaultRules())))
	}

	// Monitoring
	pm := infra.NewProcessManager()
	sampler := monitor.NewSampler(monitor.SamplerConfig{
		Interval:      cfg.Monitor.PollInterval,
		SenseTimeout:  cfg.Monitor.SenseTimeout,
		IdleThreshold: cfg.Monitor.IdleThreshold,
	}, infra.NewForegroundSensor(pm, logger), pm, logger)
	tracker := monitor.NewTracker(monitor.TrackerConfig{
		Window:          cfg.Monitor.KeystrokeWindow,
		ActiveThreshold: cfg.Monitor.ActiveThreshold,
	}, logger)
	detector := monitor.NewDetector(monitor.DetectorConfig{
		ActiveThreshold: cfg.Monitor.ActiveThreshold,
		RateThreshold:   cfg.Monitor.RateThreshold,
	}, sampler, tracker, store, logger)

	var keys domain.KeySource
	if cfg.Monitor.KeyboardCapture {
		keys = infra.NewKeyboardSource(cfg.Monitor.KeyboardDevices, logger)
	}
	watcher := daemon.NewWatcher(daemon.WatcherConfig{
		PollInterval: cfg.Monitor.PollInterval,
		KeyBuffer:    cfg.Monitor.KeyBuffer,
	}, nil, detector, tracker, keys, logger)

	// Rules
	engine := policy.NewEngine(logger)
	var smart *policy.SmartBlocker
	if cfg.Smart.Enabled {
		smart = policy.NewSmartBlocker(store, logger)
		if err := smart.Load(ctx); err != nil {
			logger.Warn("starting without stored productivity scores", zap.Error(err))
		}
	}

	srv := api.NewServer(api.Config{
		Host:            cfg.API.Host,
		Port:            cfg.API.Port,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	}, api.Deps{
		Checker:  usecase.NewAccessChecker(store, store, engine, detector, smart, logger),
		Stats:    usecase.NewStatsService(store, store, detector, tracker, logger),
		Rules:    store,
		Engine:   engine,
		Focus:    sampler,
		Activity: tracker,
		Session:  detector,
		Liveness: watcher,
		Version:  Version,
	}, logger)

	if err := infra.WritePIDFile(paths.PIDFile, os.Getpid()); err != nil {
		logger.Warn("failed to write pid file", zap.Error(err))
	}
	defer func() { _ = infra.RemovePIDFile(paths.PIDFile, os.Getpid()) }()

	logger.Info("deepfocus started",
		zap.String("version", Version),
		zap.String("addr", srv.Addr()),
		zap.String("data_dir", paths.DataDir),
		zap.Bool("smart", cfg.Smart.Enabled))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()
	logger.Info("deepfocus stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
