package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

func TestProductivityScore(t *testing.T) {
	tests := []struct {
		name       string
		productive float64
		total      float64
		blocks     int
		want       float64
	}{
		{"no focus time", 0, 0, 10, 0},
		{"all productive no blocks", 60, 60, 0, 70},
		{"half productive", 30, 60, 5, 45},
		{"block bonus capped", 60, 60, 40, 100},
		{"bonus only", 0, 60, 3, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ProductivityScore(tt.productive, tt.total, tt.blocks), 1e-9)
		})
	}
}

func TestStatsService_TodayStats(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.Local)
	midnight := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	store := &mockEventStore{
		sessions: []domain.SessionSummary{
			{ID: "yesterday", StartTime: midnight.Add(-time.Hour), DurationMinutes: 50, AverageRate: 40},
			{ID: "a", StartTime: midnight.Add(9 * time.Hour), DurationMinutes: 40, AverageRate: 35},
			{ID: "b", StartTime: midnight.Add(11 * time.Hour), DurationMinutes: 20, AverageRate: 4},
		},
		events: []domain.BlockEvent{
			{ID: "old", Timestamp: midnight.Add(-time.Minute)},
			{ID: "1", Timestamp: midnight.Add(10 * time.Hour)},
			{ID: "2", Timestamp: midnight.Add(12 * time.Hour)},
		},
	}
	s := NewStatsService(store, store, &fakeSession{}, &fakeActivity{}, nil)
	s.now = func() time.Time { return now }

	got, err := s.TodayStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", got.Date)
	assert.Equal(t, 2, got.TotalSessions)
	assert.Equal(t, 60.0, got.TotalFocusMinutes)
	assert.Equal(t, 40.0, got.ProductiveMinutes)
	assert.Equal(t, 2, got.DistractionsBlocked)
	assert.InDelta(t, 40.0/60.0*70+4, got.ProductivityScore, 1e-9)
}

func TestStatsService_TodayStatsError(t *testing.T) {
	store := &mockEventStore{err: errors.New("boom")}
	s := NewStatsService(store, store, &fakeSession{}, &fakeActivity{}, nil)

	_, err := s.TodayStats(context.Background())
	assert.ErrorContains(t, err, "failed to load sessions")
}

func TestStatsService_CurrentSession(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	t.Run("idle", func(t *testing.T) {
		store := &mockEventStore{}
		s := NewStatsService(store, store, &fakeSession{}, &fakeActivity{}, nil)

		got, err := s.CurrentSession(context.Background())
		require.NoError(t, err)
		assert.False(t, got.Active)
		assert.Nil(t, got.StartTime)
	})

	t.Run("coding", func(t *testing.T) {
		start := now.Add(-25 * time.Minute)
		store := &mockEventStore{events: []domain.BlockEvent{
			{ID: "stale", Timestamp: now.Add(-2 * time.Hour)},
			{ID: "recent", Timestamp: now.Add(-10 * time.Minute)},
		}}
		activity := &fakeActivity{metrics: domain.ActivityMetrics{KeystrokesPerMinute: 42, ActivityLevel: domain.LevelMedium, IsActive: true}}
		s := NewStatsService(store, store, &fakeSession{coding: true, start: start, minutes: 25.004}, activity, nil)
		s.now = func() time.Time { return now }

		got, err := s.CurrentSession(context.Background())
		require.NoError(t, err)
		assert.True(t, got.Active)
		require.NotNil(t, got.StartTime)
		assert.Equal(t, start, *got.StartTime)
		assert.Equal(t, 25.0, got.DurationMinutes)
		assert.Equal(t, 1, got.BlocksCount)
		require.NotNil(t, got.KeystrokeActivity)
		assert.Equal(t, 42.0, got.KeystrokeActivity.KeystrokesPerMinute)
	})
}
