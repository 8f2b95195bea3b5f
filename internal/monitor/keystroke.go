package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// Keystroke rate thresholds (per minute) for activity levels.
const (
	highRate   = 60
	mediumRate = 20
	lowRate    = 5
)

// TrackerConfig holds keystroke window settings.
type TrackerConfig struct {
	Window          time.Duration // Sliding window for rate (default 60s)
	ActiveThreshold time.Duration // Max gap since last key to count as active (default 30s)
}

// DefaultTrackerConfig returns default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Window:          60 * time.Second,
		ActiveThreshold: 30 * time.Second,
	}
}

// Tracker keeps keystroke timestamps over a sliding window.
// Only timestamps are stored, never key identities.
type Tracker struct {
	config TrackerConfig
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	events []time.Time
	last   time.Time
	total  int64
}

// NewTracker creates a keystroke tracker.
func NewTracker(config TrackerConfig, logger *zap.Logger) *Tracker {
	return newTracker(config, logger, time.Now)
}

func newTracker(config TrackerConfig, logger *zap.Logger, now func() time.Time) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Window <= 0 {
		config.Window = DefaultTrackerConfig().Window
	}
	return &Tracker{config: config, logger: logger, now: now}
}

// RecordEvent records one key press at the current time.
func (t *Tracker) RecordEvent() {
	t.RecordEventAt(t.now())
}

// RecordEvents records n key presses at the current time.
func (t *Tracker) RecordEvents(n int) {
	if n <= 0 {
		return
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i < n; i++ {
		t.events = append(t.events, now)
	}
	t.last = now
	t.total += int64(n)
	t.pruneLocked(now)
}

// RecordEventAt records one key press at ts.
func (t *Tracker) RecordEventAt(ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ts)
	if ts.After(t.last) {
		t.last = ts
	}
	t.total++
	t.pruneLocked(ts)
}

// pruneLocked drops events at or before now-window. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.config.Window)
	i := 0
	for i < len(t.events) && !t.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}

// Metrics prunes the window and summarizes it.
func (t *Tracker) Metrics() domain.ActivityMetrics {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(now)

	rate := float64(len(t.events)) / t.config.Window.Seconds() * 60
	level := levelFor(rate)

	m := domain.ActivityMetrics{
		KeystrokesPerMinute: rate,
		TotalKeystrokes:     t.total,
		ActivityLevel:       level,
		IsActive:            level != domain.LevelIdle,
	}
	if !t.last.IsZero() {
		since := now.Sub(t.last).Seconds()
		m.TimeSinceLastKeystroke = &since
	}
	return m
}

func levelFor(rate float64) domain.ActivityLevel {
	switch {
	case rate > highRate:
		return domain.LevelHigh
	case rate > mediumRate:
		return domain.LevelMedium
	case rate > lowRate:
		return domain.LevelLow
	default:
		return domain.LevelIdle
	}
}

// IsUserActive reports whether a key was pressed within threshold.
// A non-positive threshold uses the configured one.
func (t *Tracker) IsUserActive(threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = t.config.ActiveThreshold
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last.IsZero() {
		return false
	}
	return t.now().Sub(t.last) < threshold
}

// Total returns keystrokes recorded since the last Reset.
func (t *Tracker) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Reset clears the window, total and last-key time.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.events = nil
	t.last = time.Time{}
	t.total = 0
	t.mu.Unlock()
	t.logger.Debug("keystroke metrics reset")
}

// Consume records every timestamp received on in until ctx is done or in is closed.
func (t *Tracker) Consume(ctx context.Context, in <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts, ok := <-in:
			if !ok {
				return nil
			}
			t.RecordEventAt(ts)
		}
	}
}
