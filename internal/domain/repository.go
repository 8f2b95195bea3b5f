package domain

import (
	"context"
	"time"
)

// ProcessManager handles OS process queries.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// NameByPID returns the executable name of a process.
	NameByPID(pid int) (string, error)

	// RunningNames returns the names of all running processes.
	RunningNames() ([]string, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// WindowSensor reads the foreground application from the OS.
// Implementations must honor ctx deadlines.
type WindowSensor interface {
	Foreground(ctx context.Context) (ProcessSnapshot, error)
}

// KeySource pushes one timestamp per key press into out until ctx is done.
// Sends must never block; a full channel drops the event.
type KeySource interface {
	Run(ctx context.Context, out chan<- time.Time) error
}

// RuleStore persists blocking rules.
type RuleStore interface {
	// List returns all rules ordered by priority desc, then id asc.
	List(ctx context.Context) ([]Rule, error)

	// ListActive returns active rules in the same order as List.
	ListActive(ctx context.Context) ([]Rule, error)

	// Get returns a rule by ID or ErrRuleNotFound.
	Get(ctx context.Context, id int64) (*Rule, error)

	// Create stores a new rule and assigns its ID and timestamps.
	Create(ctx context.Context, rule *Rule) error

	// Update overwrites an existing rule.
	Update(ctx context.Context, rule *Rule) error

	// Delete removes a rule.
	Delete(ctx context.Context, id int64) error

	// Toggle flips IsActive and returns the updated rule.
	Toggle(ctx context.Context, id int64) (*Rule, error)
}

// SessionStore persists finished coding sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, s SessionSummary) error
	SessionsSince(ctx context.Context, since time.Time) ([]SessionSummary, error)
}

// BlockEventStore persists block events.
type BlockEventStore interface {
	RecordBlock(ctx context.Context, e BlockEvent) error
	CountBlocksSince(ctx context.Context, since time.Time) (int, error)
	// MarkOverridden flags the newest not yet overridden event for
	// destination. It reports false when there is none.
	MarkOverridden(ctx context.Context, destination string) (bool, error)
}

// ScoreStore persists productivity scores and override counts per destination.
type ScoreStore interface {
	SaveScore(ctx context.Context, destination string, score float64) error
	SaveOverrides(ctx context.Context, destination string, count int) error
	LoadScores(ctx context.Context) (scores map[string]float64, overrides map[string]int, err error)
}

// KeyProvider abstracts the source of the database encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
