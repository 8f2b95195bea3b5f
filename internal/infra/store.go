package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

const (
	storeDBName = "deepfocus.db"
	seededKey   = "rules_seeded"
)

const schema = `
CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	domain_pattern TEXT NOT NULL,
	action TEXT NOT NULL,
	delay_minutes INTEGER NOT NULL DEFAULT 5,
	required_focus_minutes INTEGER NOT NULL DEFAULT 30,
	reminder_message TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 50,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS focus_sessions (
	id TEXT PRIMARY KEY,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	duration_minutes REAL NOT NULL,
	total_keystrokes INTEGER NOT NULL,
	average_kpm REAL NOT NULL,
	primary_app TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_focus_sessions_start ON focus_sessions(start_time);

CREATE TABLE IF NOT EXISTS block_events (
	id TEXT PRIMARY KEY,
	rule_id INTEGER NOT NULL,
	url TEXT NOT NULL,
	domain TEXT NOT NULL,
	action TEXT NOT NULL,
	was_overridden INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_block_events_ts ON block_events(timestamp);

CREATE TABLE IF NOT EXISTS productivity_scores (
	domain TEXT PRIMARY KEY,
	score REAL NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS override_counts (
	domain TEXT PRIMARY KEY,
	count INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

var tableNames = []string{"rules", "focus_sessions", "block_events", "productivity_scores", "override_counts", "meta"}

// EncryptedStore persists rules, sessions, block events and scores in a
// SQLCipher encrypted SQLite database.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewEncryptedStore opens (or creates) the database under dataDir.
// The key is used as the SQLCipher passphrase.
func NewEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{db: db, dbPath: dbPath, now: time.Now}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// addedColumns lists columns introduced after a table was first shipped.
var addedColumns = []struct{ table, column, ddl string }{
	{"focus_sessions", "primary_app", "TEXT NOT NULL DEFAULT ''"},
}

// migrate adds columns missing from databases created by older versions.
func (s *EncryptedStore) migrate(ctx context.Context) error {
	for _, c := range addedColumns {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.column).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, c.ddl)); err != nil {
			return fmt.Errorf("add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Reset drops all data and recreates the schema.
func (s *EncryptedStore) Reset(ctx context.Context) error {
	for _, t := range tableNames {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("failed to drop %s: %w", t, err)
		}
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SeedRules inserts rules once per database. It reports whether it seeded.
func (s *EncryptedStore) SeedRules(ctx context.Context, rules []domain.Rule) (bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, seededKey).Scan(&v)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	for i := range rules {
		r := rules[i]
		if err := s.Create(ctx, &r); err != nil {
			return false, fmt.Errorf("failed to seed rule %q: %w", r.Name, err)
		}
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		seededKey, s.now().UTC().Format(time.RFC3339))
	return err == nil, err
}

// --- domain.RuleStore implementation ---

const ruleColumns = `id, name, domain_pattern, action, delay_minutes, required_focus_minutes,
	reminder_message, priority, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (domain.Rule, error) {
	var r domain.Rule
	var action string
	var active int
	var created, updated int64
	err := row.Scan(&r.ID, &r.Name, &r.DomainPattern, &action, &r.DelayMinutes, &r.RequiredFocusMinutes,
		&r.ReminderMessage, &r.Priority, &active, &created, &updated)
	if err != nil {
		return r, err
	}
	r.Action = domain.BlockAction(action)
	r.IsActive = active != 0
	r.CreatedAt = time.UnixMilli(created)
	r.UpdatedAt = time.UnixMilli(updated)
	return r, nil
}

func (s *EncryptedStore) queryRules(ctx context.Context, where string) ([]domain.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules `+where+` ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// List returns all rules, highest priority first; ties by ascending id.
func (s *EncryptedStore) List(ctx context.Context) ([]domain.Rule, error) {
	return s.queryRules(ctx, "")
}

// ListActive returns active rules in List order.
func (s *EncryptedStore) ListActive(ctx context.Context) ([]domain.Rule, error) {
	return s.queryRules(ctx, "WHERE is_active = 1")
}

// Get returns one rule.
func (s *EncryptedStore) Get(ctx context.Context, id int64) (*domain.Rule, error) {
	r, err := scanRule(s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts rule and fills in its ID and timestamps.
func (s *EncryptedStore) Create(ctx context.Context, rule *domain.Rule) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (name, domain_pattern, action, delay_minutes, required_focus_minutes,
			reminder_message, priority, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.DomainPattern, string(rule.Action), rule.DelayMinutes, rule.RequiredFocusMinutes,
		rule.ReminderMessage, rule.Priority, boolToInt(rule.IsActive), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rule.ID = id
	rule.CreatedAt = time.UnixMilli(now.UnixMilli())
	rule.UpdatedAt = rule.CreatedAt
	return nil
}

// Update overwrites every mutable column of rule.
func (s *EncryptedStore) Update(ctx context.Context, rule *domain.Rule) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE rules SET name = ?, domain_pattern = ?, action = ?, delay_minutes = ?,
			required_focus_minutes = ?, reminder_message = ?, priority = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		rule.Name, rule.DomainPattern, string(rule.Action), rule.DelayMinutes, rule.RequiredFocusMinutes,
		rule.ReminderMessage, rule.Priority, boolToInt(rule.IsActive), now.UnixMilli(), rule.ID,
	)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	rule.UpdatedAt = time.UnixMilli(now.UnixMilli())
	return nil
}

// Delete removes a rule.
func (s *EncryptedStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Toggle flips is_active.
func (s *EncryptedStore) Toggle(ctx context.Context, id int64) (*domain.Rule, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rules SET is_active = 1 - is_active, updated_at = ? WHERE id = ?`,
		s.now().UnixMilli(), id)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

// --- domain.SessionStore implementation ---

// SaveSession stores a finished focus session.
func (s *EncryptedStore) SaveSession(ctx context.Context, fs domain.SessionSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO focus_sessions
			(id, start_time, end_time, duration_minutes, total_keystrokes, average_kpm, primary_app)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fs.ID, fs.StartTime.UnixMilli(), fs.EndTime.UnixMilli(), fs.DurationMinutes,
		fs.TotalKeystrokes, fs.AverageRate, fs.PrimaryApp,
	)
	return err
}

// SessionsSince returns sessions that started at or after since, oldest first.
func (s *EncryptedStore) SessionsSince(ctx context.Context, since time.Time) ([]domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, duration_minutes, total_keystrokes, average_kpm, primary_app
		FROM focus_sessions WHERE start_time >= ? ORDER BY start_time ASC`, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var fs domain.SessionSummary
		var start, end int64
		if err := rows.Scan(&fs.ID, &start, &end, &fs.DurationMinutes, &fs.TotalKeystrokes, &fs.AverageRate, &fs.PrimaryApp); err != nil {
			return nil, err
		}
		fs.StartTime = time.UnixMilli(start)
		fs.EndTime = time.UnixMilli(end)
		out = append(out, fs)
	}
	return out, rows.Err()
}

// --- domain.BlockEventStore implementation ---

// RecordBlock stores a block event.
func (s *EncryptedStore) RecordBlock(ctx context.Context, e domain.BlockEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO block_events (id, rule_id, url, domain, action, was_overridden, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RuleID, e.URL, e.Domain, string(e.Action), boolToInt(e.WasOverridden), e.Timestamp.UnixMilli(),
	)
	return err
}

// CountBlocksSince counts block events at or after since.
func (s *EncryptedStore) CountBlocksSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM block_events WHERE timestamp >= ?`,
		since.UnixMilli()).Scan(&n)
	return n, err
}

// MarkOverridden flags the newest block event for destination that has not
// been overridden yet.
func (s *EncryptedStore) MarkOverridden(ctx context.Context, destination string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE block_events SET was_overridden = 1
		WHERE id = (
			SELECT id FROM block_events
			WHERE domain = ? AND was_overridden = 0
			ORDER BY timestamp DESC LIMIT 1
		)`, destination)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- domain.ScoreStore implementation ---

// SaveScore upserts a productivity score.
func (s *EncryptedStore) SaveScore(ctx context.Context, destination string, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO productivity_scores (domain, score, updated_at) VALUES (?, ?, ?)`,
		destination, score, s.now().UnixMilli())
	return err
}

// SaveOverrides upserts an override count.
func (s *EncryptedStore) SaveOverrides(ctx context.Context, destination string, count int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO override_counts (domain, count, updated_at) VALUES (?, ?, ?)`,
		destination, count, s.now().UnixMilli())
	return err
}

// LoadScores returns all stored scores and override counts.
func (s *EncryptedStore) LoadScores(ctx context.Context) (map[string]float64, map[string]int, error) {
	scores := make(map[string]float64)
	rows, err := s.db.QueryContext(ctx, `SELECT domain, score FROM productivity_scores`)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var d string
		var v float64
		if err := rows.Scan(&d, &v); err != nil {
			rows.Close()
			return nil, nil, err
		}
		scores[d] = v
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	overrides := make(map[string]int)
	rows, err = s.db.QueryContext(ctx, `SELECT domain, count FROM override_counts`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, nil, err
		}
		overrides[d] = n
	}
	return scores, overrides, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure EncryptedStore implements the storage interfaces.
var (
	_ domain.RuleStore       = (*EncryptedStore)(nil)
	_ domain.SessionStore    = (*EncryptedStore)(nil)
	_ domain.BlockEventStore = (*EncryptedStore)(nil)
	_ domain.ScoreStore      = (*EncryptedStore)(nil)
)
