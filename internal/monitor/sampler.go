// Package monitor senses user activity: which application is in front,
// how fast the user is typing, and whether that adds up to a coding session.
package monitor

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// Known process name fragments, matched case-insensitively as substrings.
var (
	ideProcesses = []string{
		"code", "pycharm", "idea", "intellijidea", "sublime_text", "sublime text",
		"atom", "webstorm", "goland", "rubymine", "clion", "datagrip",
		"vim", "nvim", "emacs", "eclipse", "netbeans", "xcode",
		"devenv.exe", "visual studio",
	}
	browserProcesses = []string{
		"chrome", "firefox", "safari", "msedge", "microsoft edge", "brave", "opera",
	}
	productivityProcesses = []string{
		"terminal", "cmd.exe", "powershell.exe", "iterm2", "docker", "postman",
		"slack", "teams", "zoom", "notion", "obsidian",
	}
)

// Categorize classifies a process name. IDE wins over browser, browser over productivity.
func Categorize(name string) domain.Category {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, ideProcesses):
		return domain.CategoryIDE
	case containsAny(lower, browserProcesses):
		return domain.CategoryBrowser
	case containsAny(lower, productivityProcesses):
		return domain.CategoryProductivity
	default:
		return domain.CategoryUnknown
	}
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

// SamplerConfig holds sampler timing.
type SamplerConfig struct {
	Interval      time.Duration // How often the polling loop samples (default 5s)
	SenseTimeout  time.Duration // Upper bound on one platform call (default 2s)
	IdleThreshold time.Duration // IDE inactivity before a session is over (default 5 min)
}

// DefaultSamplerConfig returns default sampler configuration.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Interval:      5 * time.Second,
		SenseTimeout:  2 * time.Second,
		IdleThreshold: 5 * time.Minute,
	}
}

// Sampler reports the foreground application and remembers when an IDE
// was last in front.
type Sampler struct {
	config SamplerConfig
	sensor domain.WindowSensor
	pm     domain.ProcessManager
	logger *zap.Logger
	now    func() time.Time

	mu            sync.RWMutex
	current       domain.ProcessSnapshot
	lastIDEActive time.Time
}

// NewSampler creates a sampler. pm may be nil if process listing is not needed.
func NewSampler(config SamplerConfig, sensor domain.WindowSensor, pm domain.ProcessManager, logger *zap.Logger) *Sampler {
	return newSampler(config, sensor, pm, logger, time.Now)
}

func newSampler(config SamplerConfig, sensor domain.WindowSensor, pm domain.ProcessManager, logger *zap.Logger, now func() time.Time) *Sampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{
		config:        config,
		sensor:        sensor,
		pm:            pm,
		logger:        logger,
		now:           now,
		current:       domain.UnknownSnapshot(),
		lastIDEActive: now(),
	}
}

// Sample reads the foreground application. Failures yield an unknown snapshot.
func (s *Sampler) Sample(ctx context.Context) domain.ProcessSnapshot {
	if s.sensor == nil {
		return domain.UnknownSnapshot()
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SenseTimeout)
	defer cancel()

	snap, err := s.sensor.Foreground(ctx)
	if err != nil || snap.ProcessName == "" {
		s.logger.Debug("foreground detection failed", zap.Error(err))
		return domain.UnknownSnapshot()
	}
	snap.Category = Categorize(snap.ProcessName)
	return snap
}

// IsIDEActive samples and reports whether an IDE is in front.
func (s *Sampler) IsIDEActive(ctx context.Context) bool {
	return s.Sample(ctx).Category == domain.CategoryIDE
}

// Poll runs one sampling iteration and records the result.
func (s *Sampler) Poll(ctx context.Context) domain.ProcessSnapshot {
	snap := s.Sample(ctx)

	s.mu.Lock()
	s.current = snap
	if snap.Category == domain.CategoryIDE {
		s.lastIDEActive = s.now()
	}
	s.mu.Unlock()

	s.logger.Debug("sampled foreground app",
		zap.String("app", snap.ProcessName),
		zap.String("category", string(snap.Category)))
	return snap
}

// Current returns the snapshot recorded by the last Poll.
func (s *Sampler) Current() domain.ProcessSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LastIDEActive returns when Poll last saw an IDE in front.
func (s *Sampler) LastIDEActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastIDEActive
}

// IsCodingSessionActive reports whether an IDE is in front and was seen
// within idle. A non-positive idle uses the configured threshold.
func (s *Sampler) IsCodingSessionActive(ctx context.Context, idle time.Duration) bool {
	if idle <= 0 {
		idle = s.config.IdleThreshold
	}
	if !s.IsIDEActive(ctx) {
		return false
	}
	return s.now().Sub(s.LastIDEActive()) < idle
}

// FocusStats summarizes what the last Poll recorded. It does not sense
// again, so it is safe to call from request handlers.
func (s *Sampler) FocusStats(ctx context.Context) domain.FocusStats {
	s.mu.RLock()
	current, last := s.current, s.lastIDEActive
	s.mu.RUnlock()

	ide := current.Category == domain.CategoryIDE
	since := s.now().Sub(last)
	return domain.FocusStats{
		CurrentApp:        current.ProcessName,
		IsIDEActive:       ide,
		IsCoding:          ide && since < s.config.IdleThreshold,
		LastActivity:      last,
		TimeSinceActivity: since.Seconds(),
	}
}

// RunningByCategory lists running process names grouped by category.
// Unknown processes are left out.
func (s *Sampler) RunningByCategory() (map[domain.Category][]string, error) {
	out := make(map[domain.Category][]string)
	if s.pm == nil {
		return out, nil
	}

	names, err := s.pm.RunningNames()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if c := Categorize(name); c != domain.CategoryUnknown {
			out[c] = append(out[c], name)
		}
	}
	for c := range out {
		sort.Strings(out[c])
	}
	return out, nil
}
