// Package dto holds HTTP request and response bodies.
package dto

import (
	"time"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// ErrorResponse is returned on failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse lists every problem found in a rule.
type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// MonitorHealth reports the background loop.
type MonitorHealth struct {
	Running  bool      `json:"running"`
	LastTick time.Time `json:"last_tick,omitempty"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Monitor   MonitorHealth `json:"monitor"`
}

// SessionInfo is the short session view inside StatusResponse.
type SessionInfo struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes float64   `json:"duration_minutes"`
}

// StatusResponse is the /api/status body.
type StatusResponse struct {
	IsActivelyCoding    bool                 `json:"is_actively_coding"`
	CurrentApp          string               `json:"current_app"`
	IsIDEActive         bool                 `json:"is_ide_active"`
	KeystrokeActivity   domain.ActivityLevel `json:"keystroke_activity"`
	KeystrokesPerMinute float64              `json:"keystrokes_per_minute"`
	CurrentSession      *SessionInfo         `json:"current_session"`
}

// RuleRequest creates or replaces a rule. Omitted numeric fields take
// their defaults on create and keep their value on update.
type RuleRequest struct {
	Name                 string             `json:"name"`
	DomainPattern        string             `json:"domain_pattern"`
	Action               domain.BlockAction `json:"action"`
	DelayMinutes         *int               `json:"delay_minutes"`
	RequiredFocusMinutes *int               `json:"required_focus_minutes"`
	ReminderMessage      string             `json:"reminder_message"`
	Priority             *int               `json:"priority"`
	IsActive             *bool              `json:"is_active"`
}

// Apply copies the request onto rule.
func (r RuleRequest) Apply(rule *domain.Rule) {
	rule.Name = r.Name
	rule.DomainPattern = r.DomainPattern
	rule.Action = r.Action
	rule.ReminderMessage = r.ReminderMessage
	if r.DelayMinutes != nil {
		rule.DelayMinutes = *r.DelayMinutes
	}
	if r.RequiredFocusMinutes != nil {
		rule.RequiredFocusMinutes = *r.RequiredFocusMinutes
	}
	if r.Priority != nil {
		rule.Priority = *r.Priority
	}
	if r.IsActive != nil {
		rule.IsActive = *r.IsActive
	}
}

// NewRule builds a rule from the request with defaults filled in.
func (r RuleRequest) NewRule() domain.Rule {
	rule := domain.Rule{
		DelayMinutes:         domain.DefaultDelayMinutes,
		RequiredFocusMinutes: domain.DefaultRequiredFocusMinutes,
		Priority:             domain.DefaultRulePriority,
		IsActive:             true,
	}
	r.Apply(&rule)
	return rule
}

// ToggleResponse reports a rule's new state.
type ToggleResponse struct {
	ID       int64 `json:"id"`
	IsActive bool  `json:"is_active"`
}

// OverrideResponse reports the override count after a bypass.
type OverrideResponse struct {
	Domain        string `json:"domain"`
	OverrideCount int    `json:"override_count"`
}

// ScoreRequest sets a destination's productivity score.
type ScoreRequest struct {
	Domain string   `json:"domain" binding:"required"`
	Score  *float64 `json:"score" binding:"required"`
}

// ScoreResponse echoes the stored (clamped) score.
type ScoreResponse struct {
	Domain string  `json:"domain"`
	Score  float64 `json:"score"`
}

// KeystrokeRequest reports key presses observed by a client.
type KeystrokeRequest struct {
	Count int `json:"count" binding:"required,min=1,max=10000"`
}
