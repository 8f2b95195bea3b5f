// Package handler implements the HTTP endpoints.
package handler

import (
	"context"
	"time"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// FocusSource reports the foreground-application view.
type FocusSource interface {
	FocusStats(ctx context.Context) domain.FocusStats
}

// ActivitySource reports and accepts keystroke activity.
type ActivitySource interface {
	Metrics() domain.ActivityMetrics
	RecordEvents(n int)
}

// CodingState exposes the session state machine.
type CodingState interface {
	IsCoding() bool
	SessionStart() (time.Time, bool)
	SessionMinutes() float64
}

// Liveness reports whether the background loop is running.
type Liveness interface {
	Running() bool
	LastTick() time.Time
}
