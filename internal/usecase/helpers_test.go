package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// fakeSession implements SessionView.
type fakeSession struct {
	coding  bool
	start   time.Time
	minutes float64
}

func (f *fakeSession) IsCoding() bool { return f.coding }

func (f *fakeSession) SessionStart() (time.Time, bool) {
	return f.start, !f.start.IsZero()
}

func (f *fakeSession) SessionMinutes() float64 { return f.minutes }

// fakeActivity implements ActivityView.
type fakeActivity struct {
	metrics domain.ActivityMetrics
}

func (f *fakeActivity) Metrics() domain.ActivityMetrics { return f.metrics }

// mockEventStore implements domain.BlockEventStore and domain.SessionStore.
type mockEventStore struct {
	mu       sync.Mutex
	events   []domain.BlockEvent
	sessions []domain.SessionSummary
	err      error
}

func (m *mockEventStore) RecordBlock(_ context.Context, e domain.BlockEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *mockEventStore) CountBlocksSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, e := range m.events {
		if !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockEventStore) MarkOverridden(_ context.Context, destination string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Domain == destination && !m.events[i].WasOverridden {
			m.events[i].WasOverridden = true
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEventStore) SaveSession(_ context.Context, s domain.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *mockEventStore) SessionsSince(_ context.Context, since time.Time) ([]domain.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.SessionSummary
	for _, s := range m.sessions {
		if !s.StartTime.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

// failingRuleStore fails every read.
type failingRuleStore struct {
	domain.RuleStore
}

func (failingRuleStore) ListActive(context.Context) ([]domain.Rule, error) {
	return nil, errors.New("database is locked")
}
