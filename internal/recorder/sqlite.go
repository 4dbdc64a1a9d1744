package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists fetch attempts to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite journal opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_attempts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			period      TEXT NOT NULL,
			source      TEXT NOT NULL,
			attempt     INTEGER NOT NULL,
			outcome     TEXT NOT NULL,
			status_code INTEGER,
			duration_ms INTEGER,
			bars        INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_ts ON fetch_attempts(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_source ON fetch_attempts(source, outcome)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAttempt(a *FetchAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := a.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO fetch_attempts
		(timestamp, symbol, period, source, attempt, outcome, status_code, duration_ms, bars, error)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ts.Unix(), a.Symbol, string(a.Period), a.Source, a.Attempt, a.Outcome,
		a.StatusCode, a.Duration.Milliseconds(), a.Bars, a.Error,
	)
	return err
}

// OutcomeCounts returns how many attempts of source ended in each outcome
// since the given time.
func (r *SQLiteRecorder) OutcomeCounts(source string, since time.Time) (map[string]int, error) {
	rows, err := r.db.Query(`SELECT outcome, COUNT(*) FROM fetch_attempts
		WHERE source = ? AND timestamp >= ? GROUP BY outcome`, source, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
