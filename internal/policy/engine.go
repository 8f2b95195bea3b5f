// Package policy decides whether a destination should be blocked.
// Engine matches destinations against prioritized rules; SmartBlocker
// overlays per-destination productivity scores on top of its verdicts.
package policy

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// Default reminder messages, used when a rule has none.
const (
	DefaultBlockMessage = "This site is blocked during focus time."
	delayMessageFormat  = "Access will be granted in %d minutes."
	focusMessageFormat  = "Focus for %.0f more minutes to unlock this site."
)

// Validation bounds.
const (
	MaxDelayMinutes         = 60
	MaxRequiredFocusMinutes = 240
	MinPriority             = 0
	MaxPriority             = 100
	maxNameLength           = 100
	maxPatternLength        = 255
	maxMessageLength        = 500
)

const rawPatternChars = "^$()[]"

// matcher tests a normalized destination. A nil re means plain containment.
type matcher struct {
	re      *regexp.Regexp
	literal string
}

func (m *matcher) match(destination string) bool {
	if m.re != nil {
		return m.re.MatchString(destination)
	}
	return strings.Contains(destination, m.literal)
}

// Engine evaluates rules against destinations.
// It is safe for concurrent use.
type Engine struct {
	cache    sync.Map // normalized pattern -> *matcher
	group    singleflight.Group
	compiles atomic.Int64
	logger   *zap.Logger
}

// NewEngine creates a rule engine with an empty matcher cache.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Normalize lowercases and trims a destination or pattern.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// compilePattern turns a normalized pattern into a regexp.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.ContainsAny(pattern, rawPatternChars) {
		return regexp.Compile(pattern)
	}
	if strings.ContainsAny(pattern, "*?") {
		escaped := regexp.QuoteMeta(pattern)
		escaped = strings.ReplaceAll(escaped, `\*`, ".*")
		escaped = strings.ReplaceAll(escaped, `\?`, ".")
		return regexp.Compile("^" + escaped + "$")
	}
	return regexp.Compile(regexp.QuoteMeta(pattern))
}

// matcherFor returns the cached matcher for a normalized pattern,
// compiling it at most once per key.
func (e *Engine) matcherFor(pattern string) *matcher {
	if m, ok := e.cache.Load(pattern); ok {
		return m.(*matcher)
	}

	v, _, _ := e.group.Do(pattern, func() (interface{}, error) {
		if m, ok := e.cache.Load(pattern); ok {
			return m, nil
		}
		e.compiles.Add(1)
		m := &matcher{literal: pattern}
		re, err := compilePattern(pattern)
		if err != nil {
			e.logger.Warn("invalid domain pattern, falling back to substring match",
				zap.String("pattern", pattern),
				zap.Error(err))
		} else {
			m.re = re
		}
		actual, _ := e.cache.LoadOrStore(pattern, m)
		return actual, nil
	})
	return v.(*matcher)
}

// Match reports whether destination matches pattern.
func (e *Engine) Match(destination, pattern string) bool {
	return e.matcherFor(Normalize(pattern)).match(Normalize(destination))
}

// MatchingRule returns the first active rule in list order whose pattern
// matches destination, or nil.
func (e *Engine) MatchingRule(destination string, rules []domain.Rule) *domain.Rule {
	dest := Normalize(destination)
	for i := range rules {
		if !rules[i].IsActive {
			continue
		}
		if e.matcherFor(Normalize(rules[i].DomainPattern)).match(dest) {
			return &rules[i]
		}
	}
	return nil
}

// Evaluate decides whether destination should be restricted.
// Rules must already be sorted by priority; the first match wins.
// isCoding is accepted but does not change the outcome.
func (e *Engine) Evaluate(destination string, rules []domain.Rule, isCoding bool, sessionMinutes float64) domain.BlockDecision {
	rule := e.MatchingRule(destination, rules)
	if rule == nil {
		return domain.Allow()
	}

	decision := Decide(*rule, sessionMinutes)
	e.logger.Debug("rule evaluated",
		zap.String("destination", destination),
		zap.Int64("rule_id", rule.ID),
		zap.Bool("should_block", decision.ShouldBlock),
		zap.String("action", string(decision.Action)),
		zap.Bool("is_coding", isCoding))
	return decision
}

// Decide applies a matched rule's action.
func Decide(rule domain.Rule, sessionMinutes float64) domain.BlockDecision {
	switch rule.Action {
	case domain.ActionDelay:
		return domain.BlockDecision{
			ShouldBlock:     true,
			Action:          domain.ActionDelay,
			DelaySeconds:    intPtr(rule.DelayMinutes * 60),
			ReminderMessage: messageOr(rule.ReminderMessage, fmt.Sprintf(delayMessageFormat, rule.DelayMinutes)),
		}

	case domain.ActionConditional:
		required := float64(rule.RequiredFocusMinutes)
		if sessionMinutes >= required {
			return domain.BlockDecision{ShouldBlock: false, Action: domain.ActionConditional}
		}
		remaining := required - sessionMinutes
		return domain.BlockDecision{
			ShouldBlock:        true,
			Action:             domain.ActionConditional,
			RemainingFocusTime: intPtr(int(remaining * 60)),
			ReminderMessage:    messageOr(rule.ReminderMessage, fmt.Sprintf(focusMessageFormat, remaining)),
		}

	default:
		return domain.BlockDecision{
			ShouldBlock:     true,
			Action:          domain.ActionBlock,
			ReminderMessage: messageOr(rule.ReminderMessage, DefaultBlockMessage),
		}
	}
}

// Validate returns human-readable problems with rule. An empty result means valid.
func (e *Engine) Validate(rule domain.Rule) []string {
	var errs []string

	pattern := Normalize(rule.DomainPattern)
	if pattern == "" {
		errs = append(errs, "Domain pattern cannot be empty")
	} else {
		if _, err := compilePattern(pattern); err != nil {
			errs = append(errs, fmt.Sprintf("Invalid domain pattern: %s", rule.DomainPattern))
		}
		if len(rule.DomainPattern) > maxPatternLength {
			errs = append(errs, fmt.Sprintf("Domain pattern cannot exceed %d characters", maxPatternLength))
		}
	}

	switch rule.Action {
	case domain.ActionDelay:
		if rule.DelayMinutes <= 0 {
			errs = append(errs, "Delay minutes must be positive")
		} else if rule.DelayMinutes > MaxDelayMinutes {
			errs = append(errs, "Delay cannot exceed 60 minutes")
		}
	case domain.ActionConditional:
		if rule.RequiredFocusMinutes <= 0 {
			errs = append(errs, "Required focus minutes must be positive")
		} else if rule.RequiredFocusMinutes > MaxRequiredFocusMinutes {
			errs = append(errs, "Required focus cannot exceed 4 hours")
		}
	case domain.ActionBlock:
	default:
		errs = append(errs, fmt.Sprintf("Unknown action: %q", rule.Action))
	}

	if rule.Priority < MinPriority || rule.Priority > MaxPriority {
		errs = append(errs, "Priority must be between 0 and 100")
	}
	if len(rule.Name) > maxNameLength {
		errs = append(errs, fmt.Sprintf("Name cannot exceed %d characters", maxNameLength))
	}
	if len(rule.ReminderMessage) > maxMessageLength {
		errs = append(errs, fmt.Sprintf("Reminder message cannot exceed %d characters", maxMessageLength))
	}

	return errs
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func messageOr(msg, fallback string) *string {
	if msg == "" {
		msg = fallback
	}
	return &msg
}
