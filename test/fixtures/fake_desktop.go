// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// FakeDesktop is a scriptable foreground window. It satisfies domain.WindowSensor.
type FakeDesktop struct {
	mu    sync.Mutex
	app   string
	title string
	err   error
	reads int
}

// NewFakeDesktop creates a desktop with app in front.
func NewFakeDesktop(app string) *FakeDesktop {
	return &FakeDesktop{app: app}
}

// Focus brings app to the front.
func (d *FakeDesktop) Focus(app, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.app, d.title, d.err = app, title, nil
}

// Lock makes every read fail, as when the screen is locked.
func (d *FakeDesktop) Lock() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = errors.New("screen locked")
}

// Reads returns how many times the foreground was queried.
func (d *FakeDesktop) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Foreground implements domain.WindowSensor.
func (d *FakeDesktop) Foreground(ctx context.Context) (domain.ProcessSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.err != nil {
		return domain.ProcessSnapshot{}, d.err
	}
	return domain.ProcessSnapshot{ProcessName: d.app, WindowTitle: d.title}, nil
}

// TypingKeyboard emits Presses key events spaced by Gap, then waits for ctx.
// It satisfies domain.KeySource.
type TypingKeyboard struct {
	Presses int
	Gap     time.Duration
}

// Run implements domain.KeySource.
func (k TypingKeyboard) Run(ctx context.Context, out chan<- time.Time) error {
	for i := 0; i < k.Presses; i++ {
		select {
		case out <- time.Now():
		case <-ctx.Done():
			return ctx.Err()
		}
		if k.Gap > 0 {
			time.Sleep(k.Gap)
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

var (
	_ domain.WindowSensor = (*FakeDesktop)(nil)
	_ domain.KeySource    = TypingKeyboard{}
)
