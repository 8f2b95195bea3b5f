package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

func TestTracker_Levels(t *testing.T) {
	tests := []struct {
		name      string
		presses   int
		wantLevel domain.ActivityLevel
		wantRate  float64
	}{
		{"none", 0, domain.LevelIdle, 0},
		{"five is idle", 5, domain.LevelIdle, 5},
		{"six is low", 6, domain.LevelLow, 6},
		{"twenty is low", 20, domain.LevelLow, 20},
		{"twenty one is medium", 21, domain.LevelMedium, 21},
		{"sixty is medium", 60, domain.LevelMedium, 60},
		{"sixty one is high", 61, domain.LevelHigh, 61},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			tr := newTracker(DefaultTrackerConfig(), nil, clock.Now)
			tr.RecordEvents(tt.presses)

			m := tr.Metrics()
			assert.Equal(t, tt.wantLevel, m.ActivityLevel)
			assert.InDelta(t, tt.wantRate, m.KeystrokesPerMinute, 1e-9)
			assert.Equal(t, tt.wantLevel != domain.LevelIdle, m.IsActive)
			assert.Equal(t, int64(tt.presses), m.TotalKeystrokes)
		})
	}
}

func TestTracker_RateScalesWithWindow(t *testing.T) {
	clock := newFakeClock()
	tr := newTracker(TrackerConfig{Window: 30 * time.Second}, nil, clock.Now)
	tr.RecordEvents(15)
	assert.InDelta(t, 30.0, tr.Metrics().KeystrokesPerMinute, 1e-9)
}

func TestTracker_WindowPrunes(t *testing.T) {
	clock := newFakeClock()
	tr := newTracker(DefaultTrackerConfig(), nil, clock.Now)

	tr.RecordEvents(30)
	clock.Advance(20 * time.Second)
	tr.RecordEvents(10)

	assert.InDelta(t, 40.0, tr.Metrics().KeystrokesPerMinute, 1e-9)

	// Events exactly one window old are dropped.
	clock.Advance(40 * time.Second)
	m := tr.Metrics()
	assert.InDelta(t, 10.0, m.KeystrokesPerMinute, 1e-9)
	assert.Equal(t, int64(40), m.TotalKeystrokes)

	clock.Advance(time.Minute)
	assert.Zero(t, tr.Metrics().KeystrokesPerMinute)
}

func TestTracker_TimeSinceLast(t *testing.T) {
	clock := newFakeClock()
	tr := newTracker(DefaultTrackerConfig(), nil, clock.Now)

	assert.Nil(t, tr.Metrics().TimeSinceLastKeystroke)

	tr.RecordEvent()
	clock.Advance(12 * time.Second)
	since := tr.Metrics().TimeSinceLastKeystroke
	require.NotNil(t, since)
	assert.InDelta(t, 12.0, *since, 1e-9)
}

func TestTracker_IsUserActive(t *testing.T) {
	clock := newFakeClock()
	tr := newTracker(DefaultTrackerConfig(), nil, clock.Now)

	assert.False(t, tr.IsUserActive(30*time.Second))

	tr.RecordEvent()
	clock.Advance(29 * time.Second)
	assert.True(t, tr.IsUserActive(30*time.Second))
	assert.True(t, tr.IsUserActive(0))

	clock.Advance(time.Second)
	assert.False(t, tr.IsUserActive(30*time.Second))
}

func TestTracker_Reset(t *testing.T) {
	clock := newFakeClock()
	tr := newTracker(DefaultTrackerConfig(), nil, clock.Now)
	tr.RecordEvents(25)

	tr.Reset()

	m := tr.Metrics()
	assert.Zero(t, m.TotalKeystrokes)
	assert.Zero(t, m.KeystrokesPerMinute)
	assert.Nil(t, m.TimeSinceLastKeystroke)
	assert.False(t, tr.IsUserActive(time.Hour))
}

func TestTracker_Consume(t *testing.T) {
	clock := newFakeClock()
	tr := newTracker(DefaultTrackerConfig(), nil, clock.Now)

	in := make(chan time.Time, 8)
	for i := 0; i < 5; i++ {
		in <- clock.Now()
	}
	close(in)

	require.NoError(t, tr.Consume(context.Background(), in))
	assert.Equal(t, int64(5), tr.Total())
}

func TestTracker_ConsumeStopsOnCancel(t *testing.T) {
	tr := NewTracker(DefaultTrackerConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- tr.Consume(ctx, make(chan time.Time)) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Consume did not return after cancel")
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker(DefaultTrackerConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				tr.RecordEvent()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				_ = tr.Metrics()
				_ = tr.IsUserActive(0)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), tr.Total())
}
