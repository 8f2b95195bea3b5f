// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"time"
)

// ErrRuleNotFound is returned by rule stores when an ID does not exist.
var ErrRuleNotFound = errors.New("rule not found")

// BlockAction is the kind of restriction a rule applies.
type BlockAction string

const (
	ActionBlock       BlockAction = "block"
	ActionDelay       BlockAction = "delay"
	ActionConditional BlockAction = "conditional"
)

// Valid reports whether a is one of the known actions.
func (a BlockAction) Valid() bool {
	switch a {
	case ActionBlock, ActionDelay, ActionConditional:
		return true
	}
	return false
}

// Rule restricts access to destinations matching DomainPattern.
type Rule struct {
	ID                   int64       `json:"id"`
	Name                 string      `json:"name"`
	DomainPattern        string      `json:"domain_pattern"`
	Action               BlockAction `json:"action"`
	DelayMinutes         int         `json:"delay_minutes"`
	RequiredFocusMinutes int         `json:"required_focus_minutes"`
	ReminderMessage      string      `json:"reminder_message,omitempty"`
	Priority             int         `json:"priority"`
	IsActive             bool        `json:"is_active"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Defaults used when a rule is created without explicit values.
const (
	DefaultDelayMinutes         = 5
	DefaultRequiredFocusMinutes = 30
	DefaultRulePriority         = 50
)

// BlockDecision is the verdict for one destination.
// Nil pointer fields serialize as JSON null.
type BlockDecision struct {
	ShouldBlock        bool        `json:"should_block"`
	Action             BlockAction `json:"action"`
	DelaySeconds       *int        `json:"delay_seconds"`
	RemainingFocusTime *int        `json:"remaining_focus_time"`
	ReminderMessage    *string     `json:"reminder_message"`
}

// Allow is the decision returned when nothing restricts a destination.
func Allow() BlockDecision {
	return BlockDecision{ShouldBlock: false, Action: ActionBlock}
}

// Category classifies a foreground process.
type Category string

const (
	CategoryIDE          Category = "ide"
	CategoryBrowser      Category = "browser"
	CategoryProductivity Category = "productivity"
	CategoryUnknown      Category = "unknown"
)

// UnknownProcess is the process name reported when sensing fails.
const UnknownProcess = "unknown"

// ProcessSnapshot describes the foreground application at one instant.
type ProcessSnapshot struct {
	ProcessName string   `json:"process_name"`
	Category    Category `json:"category"`
	WindowTitle string   `json:"window_title,omitempty"`
}

// UnknownSnapshot is reported whenever the foreground app cannot be read.
func UnknownSnapshot() ProcessSnapshot {
	return ProcessSnapshot{ProcessName: UnknownProcess, Category: CategoryUnknown}
}

// ActivityLevel buckets the keystroke rate.
type ActivityLevel string

const (
	LevelIdle   ActivityLevel = "idle"
	LevelLow    ActivityLevel = "low"
	LevelMedium ActivityLevel = "medium"
	LevelHigh   ActivityLevel = "high"
)

// ActivityMetrics summarizes keystroke cadence over the sliding window.
type ActivityMetrics struct {
	KeystrokesPerMinute    float64       `json:"keystrokes_per_minute"`
	TotalKeystrokes        int64         `json:"total_keystrokes"`
	TimeSinceLastKeystroke *float64      `json:"time_since_last_keystroke"` // seconds, nil if none yet
	ActivityLevel          ActivityLevel `json:"activity_level"`
	IsActive               bool          `json:"is_active"`
}

// SessionState is either Idle or Coding.
type SessionState interface {
	sessionState()
}

// Idle means no coding session is in progress.
type Idle struct{}

// Coding means a session started at Start is in progress.
type Coding struct {
	Start time.Time
}

func (Idle) sessionState()   {}
func (Coding) sessionState() {}

// SessionSummary is emitted when a coding session ends.
type SessionSummary struct {
	ID              string    `json:"id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes float64   `json:"duration_minutes"`
	TotalKeystrokes int64     `json:"total_keystrokes"`
	AverageRate     float64   `json:"average_kpm"`
	PrimaryApp      string    `json:"primary_app"`
}

// BlockEvent records a destination that was restricted.
type BlockEvent struct {
	ID            string      `json:"id"`
	RuleID        int64       `json:"rule_id"`
	URL           string      `json:"url"`
	Domain        string      `json:"domain"`
	Action        BlockAction `json:"action"`
	WasOverridden bool        `json:"was_overridden"`
	Timestamp     time.Time   `json:"timestamp"`
}

// FocusStats is the sampler's view of the current foreground state.
type FocusStats struct {
	CurrentApp        string    `json:"current_app"`
	IsIDEActive       bool      `json:"is_ide_active"`
	IsCoding          bool      `json:"is_coding"`
	LastActivity      time.Time `json:"last_activity"`
	TimeSinceActivity float64   `json:"time_since_activity"`
}

// DailyStats aggregates one day of sessions and blocks.
type DailyStats struct {
	Date                string  `json:"date"`
	TotalSessions       int     `json:"total_sessions"`
	TotalFocusMinutes   float64 `json:"total_focus_minutes"`
	ProductiveMinutes   float64 `json:"productive_minutes"`
	DistractionsBlocked int     `json:"distractions_blocked"`
	ProductivityScore   float64 `json:"productivity_score"`
}
