// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/policy"
)

// ErrEmptyURL is returned when a check is requested without a destination.
var ErrEmptyURL = errors.New("url is required")

// SessionView exposes the live focus session.
type SessionView interface {
	IsCoding() bool
	SessionStart() (time.Time, bool)
	SessionMinutes() float64
}

// AccessChecker decides whether a URL may be visited right now and
// records the block events it produces.
type AccessChecker struct {
	rules   domain.RuleStore
	events  domain.BlockEventStore
	engine  *policy.Engine
	session SessionView
	smart   *policy.SmartBlocker
	logger  *zap.Logger
	now     func() time.Time
}

// NewAccessChecker creates a checker. smart and events may be nil.
func NewAccessChecker(
	rules domain.RuleStore,
	events domain.BlockEventStore,
	engine *policy.Engine,
	session SessionView,
	smart *policy.SmartBlocker,
	logger *zap.Logger,
) *AccessChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessChecker{
		rules:   rules,
		events:  events,
		engine:  engine,
		session: session,
		smart:   smart,
		logger:  logger,
		now:     time.Now,
	}
}

// ExtractDomain returns the host of rawURL, or its path when there is no
// host (bare "youtube.com/watch" style input).
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return policy.Normalize(rawURL)
	}
	if u.Host != "" {
		return policy.Normalize(u.Host)
	}
	if u.Path != "" {
		return policy.Normalize(u.Path)
	}
	return policy.Normalize(rawURL)
}

// Check evaluates rawURL against the active rules.
func (a *AccessChecker) Check(ctx context.Context, rawURL string) (domain.BlockDecision, error) {
	if rawURL == "" {
		return domain.BlockDecision{}, ErrEmptyURL
	}
	dest := ExtractDomain(rawURL)

	rules, err := a.rules.ListActive(ctx)
	if err != nil {
		return domain.BlockDecision{}, fmt.Errorf("failed to load rules: %w", err)
	}

	decision := a.engine.Evaluate(dest, rules, a.session.IsCoding(), a.session.SessionMinutes())
	if a.smart != nil {
		decision = a.smart.Apply(decision, dest)
	}

	if decision.ShouldBlock {
		a.recordBlock(ctx, rawURL, dest, rules, decision)
	}
	return decision, nil
}

// recordBlock logs a block event attributed to the matching rule.
// Smart adjustments without a matching rule are not recorded.
func (a *AccessChecker) recordBlock(ctx context.Context, rawURL, dest string, rules []domain.Rule, decision domain.BlockDecision) {
	if a.events == nil {
		return
	}
	rule := a.engine.MatchingRule(dest, rules)
	if rule == nil {
		return
	}
	event := domain.BlockEvent{
		ID:        uuid.NewString(),
		RuleID:    rule.ID,
		URL:       rawURL,
		Domain:    dest,
		Action:    decision.Action,
		Timestamp: a.now(),
	}
	if err := a.events.RecordBlock(ctx, event); err != nil {
		a.logger.Warn("failed to record block event",
			zap.String("domain", dest),
			zap.Int64("rule_id", rule.ID),
			zap.Error(err))
		return
	}
	a.logger.Info("distraction blocked",
		zap.String("domain", dest),
		zap.String("rule", rule.Name),
		zap.String("action", string(decision.Action)))
}

// RecordOverride notes that the user bypassed a block for rawURL and
// returns the destination's override count.
func (a *AccessChecker) RecordOverride(ctx context.Context, rawURL string) (string, int, error) {
	if rawURL == "" {
		return "", 0, ErrEmptyURL
	}
	dest := ExtractDomain(rawURL)
	if a.events != nil {
		if _, err := a.events.MarkOverridden(ctx, dest); err != nil {
			a.logger.Warn("failed to mark block event overridden",
				zap.String("domain", dest),
				zap.Error(err))
		}
	}
	if a.smart == nil {
		return dest, 0, nil
	}
	return dest, a.smart.RecordOverride(ctx, dest), nil
}

// UpdateScore sets a destination's productivity score.
func (a *AccessChecker) UpdateScore(ctx context.Context, destination string, score float64) (float64, bool) {
	if a.smart == nil {
		return 0, false
	}
	return a.smart.UpdateScore(ctx, policy.Normalize(destination), score), true
}
