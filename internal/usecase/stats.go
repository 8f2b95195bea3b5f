package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

const (
	// ProductiveRate is the average keystrokes per minute above which a
	// finished session counts as productive time.
	ProductiveRate = 10.0

	recentBlocksWindow = time.Hour
)

// ActivityView exposes current typing metrics.
type ActivityView interface {
	Metrics() domain.ActivityMetrics
}

// CurrentSession describes the running focus session.
type CurrentSession struct {
	Active            bool                    `json:"active"`
	StartTime         *time.Time              `json:"start_time,omitempty"`
	DurationMinutes   float64                 `json:"duration_minutes,omitempty"`
	BlocksCount       int                     `json:"blocks_count,omitempty"`
	KeystrokeActivity *domain.ActivityMetrics `json:"keystroke_activity,omitempty"`
}

// StatsService aggregates session and block history.
type StatsService struct {
	sessions domain.SessionStore
	events   domain.BlockEventStore
	session  SessionView
	activity ActivityView
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatsService creates a stats service.
func NewStatsService(sessions domain.SessionStore, events domain.BlockEventStore, session SessionView, activity ActivityView, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		sessions: sessions,
		events:   events,
		session:  session,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// ProductivityScore combines the productive share of focus time (up to 70
// points) with a bonus of 2 points per blocked distraction (up to 30).
func ProductivityScore(productiveMinutes, totalMinutes float64, blocks int) float64 {
	if totalMinutes == 0 {
		return 0
	}
	base := productiveMinutes / totalMinutes * 70
	bonus := math.Min(float64(blocks*2), 30)
	return math.Min(base+bonus, 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TodayStats summarizes sessions and blocks since local midnight.
func (s *StatsService) TodayStats(ctx context.Context) (domain.DailyStats, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	sessions, err := s.sessions.SessionsSince(ctx, midnight)
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("failed to load sessions: %w", err)
	}
	blocks, err := s.events.CountBlocksSince(ctx, midnight)
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("failed to count blocks: %w", err)
	}

	var total, productive float64
	for _, fs := range sessions {
		total += fs.DurationMinutes
		if fs.AverageRate >= ProductiveRate {
			productive += fs.DurationMinutes
		}
	}

	return domain.DailyStats{
		Date:                midnight.Format("2006-01-02"),
		TotalSessions:       len(sessions),
		TotalFocusMinutes:   round2(total),
		ProductiveMinutes:   round2(productive),
		DistractionsBlocked: blocks,
		ProductivityScore:   ProductivityScore(productive, total, blocks),
	}, nil
}

// CurrentSession reports the running session, if any. Blocks are counted
// over the last hour.
func (s *StatsService) CurrentSession(ctx context.Context) (CurrentSession, error) {
	start, ok := s.session.SessionStart()
	if !ok {
		return CurrentSession{Active: false}, nil
	}

	blocks, err := s.events.CountBlocksSince(ctx, s.now().Add(-recentBlocksWindow))
	if err != nil {
		return CurrentSession{}, fmt.Errorf("failed to count blocks: %w", err)
	}
	metrics := s.activity.Metrics()
	return CurrentSession{
		Active:            true,
		StartTime:         &start,
		DurationMinutes:   round2(s.session.SessionMinutes()),
		BlocksCount:       blocks,
		KeystrokeActivity: &metrics,
	}, nil
}
