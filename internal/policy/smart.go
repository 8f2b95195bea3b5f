package policy

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// Score thresholds and the delays they impose.
const (
	LowScoreThreshold     = 0.3
	HighScoreThreshold    = 0.7
	OverrideNoteAfter     = 3
	LowScoreDelaySeconds  = 300
	HighScoreDelaySeconds = 60
)

// Adjust overlays productivity scores and override counts on a base decision.
// It never mutates its inputs.
func Adjust(decision domain.BlockDecision, destination string, scores map[string]float64, overrides map[string]int) domain.BlockDecision {
	out := decision

	if score, ok := scores[destination]; ok {
		switch {
		case score < LowScoreThreshold && !decision.ShouldBlock:
			out = domain.BlockDecision{
				ShouldBlock:     true,
				Action:          domain.ActionDelay,
				DelaySeconds:    intPtr(LowScoreDelaySeconds),
				ReminderMessage: strPtr(fmt.Sprintf("%s flagged unproductive; delayed", destination)),
			}
		case score > HighScoreThreshold && decision.ShouldBlock && decision.Action == domain.ActionBlock:
			out.Action = domain.ActionDelay
			out.DelaySeconds = intPtr(HighScoreDelaySeconds)
			out.ReminderMessage = strPtr(
				fmt.Sprintf("%s might be work-related. Reduced delay to 1 minute.", destination))
		}
	}

	if n := overrides[destination]; n > OverrideNoteAfter {
		note := fmt.Sprintf("Note: You've overridden this block %d times. Consider adjusting your rules.", n)
		if out.ReminderMessage != nil && *out.ReminderMessage != "" {
			note = *out.ReminderMessage + "\n" + note
		}
		out.ReminderMessage = &note
	}

	return out
}

// SmartBlocker keeps per-destination productivity scores and override counts.
// Writes go through to an optional ScoreStore.
type SmartBlocker struct {
	mu        sync.RWMutex
	scores    map[string]float64
	overrides map[string]int
	store     domain.ScoreStore
	logger    *zap.Logger
}

// NewSmartBlocker creates a blocker. store may be nil.
func NewSmartBlocker(store domain.ScoreStore, logger *zap.Logger) *SmartBlocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SmartBlocker{
		scores:    make(map[string]float64),
		overrides: make(map[string]int),
		store:     store,
		logger:    logger,
	}
}

// Load replaces in-memory state with what the store holds.
func (s *SmartBlocker) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	scores, overrides, err := s.store.LoadScores(ctx)
	if err != nil {
		return fmt.Errorf("failed to load productivity scores: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for d, v := range scores {
		s.scores[d] = clamp(v)
	}
	for d, n := range overrides {
		s.overrides[d] = n
	}
	return nil
}

// UpdateScore stores score clamped to [0,1] and returns the stored value.
func (s *SmartBlocker) UpdateScore(ctx context.Context, destination string, score float64) float64 {
	v := clamp(score)

	s.mu.Lock()
	s.scores[destination] = v
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveScore(ctx, destination, v); err != nil {
			s.logger.Warn("failed to persist productivity score",
				zap.String("destination", destination),
				zap.Error(err))
		}
	}
	return v
}

// RecordOverride increments the bypass counter and returns the new count.
func (s *SmartBlocker) RecordOverride(ctx context.Context, destination string) int {
	s.mu.Lock()
	s.overrides[destination]++
	n := s.overrides[destination]
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveOverrides(ctx, destination, n); err != nil {
			s.logger.Warn("failed to persist override count",
				zap.String("destination", destination),
				zap.Error(err))
		}
	}
	return n
}

// Score returns the stored score for destination.
func (s *SmartBlocker) Score(destination string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.scores[destination]
	return v, ok
}

// Overrides returns how many times destination was bypassed.
func (s *SmartBlocker) Overrides(destination string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides[destination]
}

// Apply runs Adjust against the current state.
func (s *SmartBlocker) Apply(decision domain.BlockDecision, destination string) domain.BlockDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Adjust(decision, destination, s.scores, s.overrides)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
