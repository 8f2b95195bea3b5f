package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// mockWindowSensor implements domain.WindowSensor for testing
type mockWindowSensor struct {
	mu    sync.Mutex
	name  string
	title string
	err   error
	calls int
}

func (m *mockWindowSensor) Foreground(ctx context.Context) (domain.ProcessSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.ProcessSnapshot{}, m.err
	}
	return domain.ProcessSnapshot{ProcessName: m.name, WindowTitle: m.title}, nil
}

func (m *mockWindowSensor) set(name string) {
	m.mu.Lock()
	m.name = name
	m.err = nil
	m.mu.Unlock()
}

func (m *mockWindowSensor) fail() {
	m.mu.Lock()
	m.err = errors.New("xdotool: not found")
	m.mu.Unlock()
}

// blockingSensor waits for ctx to expire
type blockingSensor struct{}

func (blockingSensor) Foreground(ctx context.Context) (domain.ProcessSnapshot, error) {
	<-ctx.Done()
	return domain.ProcessSnapshot{}, ctx.Err()
}

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	names []string
	err   error
}

func (m *mockProcessManager) NameByPID(pid int) (string, error) { return "", nil }
func (m *mockProcessManager) RunningNames() ([]string, error)   { return m.names, m.err }
func (m *mockProcessManager) IsRunning(pid int) bool            { return false }
func (m *mockProcessManager) GetCurrentPID() int                { return 1 }

// mockSessionStore implements domain.SessionStore for testing
type mockSessionStore struct {
	mu    sync.Mutex
	saved []domain.SessionSummary
	err   error
}

func (m *mockSessionStore) SaveSession(ctx context.Context, s domain.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

func (m *mockSessionStore) SessionsSince(ctx context.Context, since time.Time) ([]domain.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, nil
}

// staticForeground implements ForegroundPoller for testing. It reports app (or
// "code" when unset) as an IDE while active.
type staticForeground struct {
	mu     sync.Mutex
	active bool
	app    string
	polls  int
}

func (p *staticForeground) Poll(ctx context.Context) domain.ProcessSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	if !p.active {
		return domain.UnknownSnapshot()
	}
	app := p.app
	if app == "" {
		app = "code"
	}
	return domain.ProcessSnapshot{ProcessName: app, Category: domain.CategoryIDE}
}

func (p *staticForeground) set(active bool) {
	p.mu.Lock()
	p.active = active
	p.mu.Unlock()
}

func (p *staticForeground) focus(app string) {
	p.mu.Lock()
	p.active = true
	p.app = app
	p.mu.Unlock()
}
