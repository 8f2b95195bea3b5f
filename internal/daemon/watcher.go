// Package daemon runs the background monitoring loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("watcher already running")

// Poller refreshes the foreground-application view.
type Poller interface {
	Poll(ctx context.Context) domain.ProcessSnapshot
}

// SessionTicker advances the coding-session state machine.
type SessionTicker interface {
	Tick(ctx context.Context) *domain.SessionSummary
}

// KeyConsumer drains key events into the activity tracker.
type KeyConsumer interface {
	Consume(ctx context.Context, in <-chan time.Time) error
}

// WatcherConfig holds watcher configuration.
type WatcherConfig struct {
	PollInterval time.Duration // How often to sample and tick (default 5s)
	KeyBuffer    int           // Capacity of the key event channel
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval: 5 * time.Second,
		KeyBuffer:    256,
	}
}

// Watcher drives the sampler and detector on a fixed interval and pumps
// keyboard events into the tracker. It can be stopped and started again.
type Watcher struct {
	config   WatcherConfig
	poller   Poller
	ticker   SessionTicker
	consumer KeyConsumer
	keys     domain.KeySource
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running  atomic.Bool
	lastTick atomic.Int64
	ticks    atomic.Int64
}

// NewWatcher creates a watcher. poller may be nil when the ticker senses the
// foreground itself. keys may be nil when keystrokes only arrive through the API.
func NewWatcher(
	config WatcherConfig,
	poller Poller,
	ticker SessionTicker,
	consumer KeyConsumer,
	keys domain.KeySource,
	logger *zap.Logger,
) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultWatcherConfig().PollInterval
	}
	if config.KeyBuffer <= 0 {
		config.KeyBuffer = DefaultWatcherConfig().KeyBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		config:   config,
		poller:   poller,
		ticker:   ticker,
		consumer: consumer,
		keys:     keys,
		logger:   logger,
	}
}

// Start launches the polling loop and key pump in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running.Store(true)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(runCtx)
	}()

	if w.keys != nil && w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.pumpKeys(runCtx)
		}()
	}

	w.logger.Info("watcher started", zap.Duration("poll_interval", w.config.PollInterval))
	return nil
}

// Stop cancels the loop and waits for it to exit. Stopping an idle
// watcher is a no-op. A concurrent Start waits until Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return
	}
	w.cancel()
	w.cancel = nil
	w.wg.Wait()
	w.running.Store(false)
	w.logger.Info("watcher stopped")
}

// Run starts the watcher and blocks until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return ctx.Err()
}

// Running reports whether the loop is active.
func (w *Watcher) Running() bool {
	return w.running.Load()
}

// LastTick returns when the loop last completed an iteration.
func (w *Watcher) LastTick() time.Time {
	ns := w.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Ticks returns the number of completed iterations.
func (w *Watcher) Ticks() int64 {
	return w.ticks.Load()
}

func (w *Watcher) loop(ctx context.Context) {
	w.iterate(ctx)

	t := time.NewTicker(w.config.PollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.iterate(ctx)
		}
	}
}

// iterate runs one sample+tick. A panic is logged and the loop continues.
func (w *Watcher) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("monitor iteration panicked", zap.String("panic", fmt.Sprint(r)))
		}
		w.lastTick.Store(time.Now().UnixNano())
		w.ticks.Add(1)
	}()

	if w.poller != nil {
		w.poller.Poll(ctx)
	}
	if summary := w.ticker.Tick(ctx); summary != nil {
		w.logger.Debug("session closed by watcher", zap.String("session_id", summary.ID))
	}
}

// pumpKeys connects the key source to the consumer through a bounded
// channel. Capture failure is logged; the API can still report activity.
func (w *Watcher) pumpKeys(ctx context.Context) {
	events := make(chan time.Time, w.config.KeyBuffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.keys.Run(gctx, events)
	})
	g.Go(func() error {
		return w.consumer.Consume(gctx, events)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		w.logger.Warn("keyboard capture stopped", zap.Error(err))
	}
}
