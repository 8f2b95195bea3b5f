package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// ForegroundPoller senses the foreground application. Sampler.Poll is the
// production poller: it senses once and records the result for readers.
type ForegroundPoller interface {
	Poll(ctx context.Context) domain.ProcessSnapshot
}

// DetectorConfig holds coding-detection thresholds.
type DetectorConfig struct {
	ActiveThreshold time.Duration // Max gap since last key to count as typing (default 30s)
	RateThreshold   float64       // Keys per minute that count as typing regardless of gap (default 10)
}

// DefaultDetectorConfig returns default detector configuration.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ActiveThreshold: 30 * time.Second,
		RateThreshold:   10,
	}
}

// Detector is the coding-session state machine.
// Only Tick changes state; readers see an atomic snapshot.
type Detector struct {
	config   DetectorConfig
	fg       ForegroundPoller
	tracker  *Tracker
	sessions domain.SessionStore
	logger   *zap.Logger
	now      func() time.Time

	tickMu sync.Mutex
	apps   map[string]int // IDE samples per process name in the current session
	state  atomic.Pointer[domain.SessionState]
}

// NewDetector creates a detector in the Idle state. sessions may be nil.
func NewDetector(config DetectorConfig, fg ForegroundPoller, tracker *Tracker, sessions domain.SessionStore, logger *zap.Logger) *Detector {
	return newDetector(config, fg, tracker, sessions, logger, time.Now)
}

func newDetector(config DetectorConfig, fg ForegroundPoller, tracker *Tracker, sessions domain.SessionStore, logger *zap.Logger, now func() time.Time) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Detector{
		config:   config,
		fg:       fg,
		tracker:  tracker,
		sessions: sessions,
		logger:   logger,
		now:      now,
	}
	d.setState(domain.Idle{})
	return d
}

func (d *Detector) setState(s domain.SessionState) {
	d.state.Store(&s)
}

// State returns the current session state.
func (d *Detector) State() domain.SessionState {
	return *d.state.Load()
}

// IsCoding reports whether a session is in progress.
func (d *Detector) IsCoding() bool {
	_, ok := d.State().(domain.Coding)
	return ok
}

// SessionStart returns the start of the current session.
func (d *Detector) SessionStart() (time.Time, bool) {
	if c, ok := d.State().(domain.Coding); ok {
		return c.Start, true
	}
	return time.Time{}, false
}

// SessionMinutes returns how long the current session has run, or 0 when idle.
func (d *Detector) SessionMinutes() float64 {
	start, ok := d.SessionStart()
	if !ok {
		return 0
	}
	return d.now().Sub(start).Minutes()
}

// isCoding fuses the IDE and keystroke signals from a single sample.
func (d *Detector) isCoding(ctx context.Context) (bool, domain.ProcessSnapshot) {
	snap := d.fg.Poll(ctx)
	if snap.Category != domain.CategoryIDE {
		return false, snap
	}
	return d.tracker.IsUserActive(d.config.ActiveThreshold) ||
		d.tracker.Metrics().KeystrokesPerMinute > d.config.RateThreshold, snap
}

// primaryApp returns the IDE sampled most often this session.
// Ties go to the alphabetically first name.
func (d *Detector) primaryApp() string {
	best, bestN := "", 0
	for name, n := range d.apps {
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	return best
}

// Tick samples both signals and applies at most one transition.
// It returns the summary of a session that just ended, or nil.
func (d *Detector) Tick(ctx context.Context) *domain.SessionSummary {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	coding, snap := d.isCoding(ctx)

	switch s := d.State().(type) {
	case domain.Idle:
		if coding {
			start := d.now()
			d.apps = map[string]int{snap.ProcessName: 1}
			d.setState(domain.Coding{Start: start})
			d.logger.Info("focus session started",
				zap.Time("start", start),
				zap.String("app", snap.ProcessName))
		}
		return nil

	case domain.Coding:
		if snap.Category == domain.CategoryIDE {
			d.apps[snap.ProcessName]++
		}
		if coding {
			return nil
		}
		summary := d.endSession(ctx, s.Start)
		return &summary
	}
	return nil
}

func (d *Detector) endSession(ctx context.Context, start time.Time) domain.SessionSummary {
	end := d.now()
	summary := domain.SessionSummary{
		ID:              ulid.Make().String(),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: end.Sub(start).Minutes(),
		TotalKeystrokes: d.tracker.Total(),
		AverageRate:     d.tracker.Metrics().KeystrokesPerMinute,
		PrimaryApp:      d.primaryApp(),
	}
	d.apps = nil

	d.setState(domain.Idle{})
	d.tracker.Reset()

	d.logger.Info("focus session ended",
		zap.String("session_id", summary.ID),
		zap.Float64("duration_minutes", summary.DurationMinutes),
		zap.Int64("total_keystrokes", summary.TotalKeystrokes),
		zap.String("primary_app", summary.PrimaryApp))

	if d.sessions != nil {
		if err := d.sessions.SaveSession(ctx, summary); err != nil {
			d.logger.Error("failed to save focus session", zap.Error(err))
		}
	}
	return summary
}
