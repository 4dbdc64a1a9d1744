package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"StockMonitor/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists price series to a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets readers proceed while a refresh is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	o := buildOptions(opts)
	s := &SQLiteStore{db: db, now: o.now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite cache opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_cache (
			symbol     TEXT    NOT NULL,
			period     TEXT    NOT NULL,
			source     TEXT    NOT NULL DEFAULT '',
			fetched_at INTEGER NOT NULL DEFAULT 0,
			written_at INTEGER NOT NULL,
			bars       TEXT    NOT NULL,
			PRIMARY KEY (symbol, period)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_cache_written ON price_cache(written_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, time.Time, bool) {
	symbol = strings.ToUpper(symbol)

	var (
		storedPeriod string
		source       string
		fetchedAt    int64
		writtenAt    int64
		rawBars      string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT period, source, fetched_at, written_at, bars FROM price_cache WHERE symbol = ? AND period = ?`,
		symbol, string(period),
	).Scan(&storedPeriod, &source, &fetchedAt, &writtenAt, &rawBars)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("[WARN] cache read %s/%s: %v", symbol, period, err)
		}
		return nil, time.Time{}, false
	}

	if !model.Period(storedPeriod).Valid() {
		log.Printf("[WARN] cache record %s/%s has unknown period, treating as miss", symbol, storedPeriod)
		return nil, time.Time{}, false
	}

	var bars []model.Bar
	if err := json.Unmarshal([]byte(rawBars), &bars); err != nil {
		log.Printf("[WARN] cache record %s/%s is corrupt, treating as miss: %v", symbol, period, err)
		return nil, time.Time{}, false
	}

	series := &model.PriceSeries{
		Symbol:    symbol,
		Period:    period,
		Bars:      bars,
		Source:    source,
		FetchedAt: fromUnixNano(fetchedAt),
	}
	return series, fromUnixNano(writtenAt), true
}

func (s *SQLiteStore) Put(ctx context.Context, symbol string, period model.Period, series *model.PriceSeries) error {
	if series == nil {
		return fmt.Errorf("put %s/%s: nil series", symbol, period)
	}
	if !period.Valid() {
		return fmt.Errorf("put %s: %w: %q", symbol, model.ErrInvalidPeriod, period)
	}
	rawBars, err := json.Marshal(series.Bars)
	if err != nil {
		return fmt.Errorf("encode bars: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO price_cache
		(symbol, period, source, fetched_at, written_at, bars)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(symbol, period) DO UPDATE SET
			source = excluded.source,
			fetched_at = excluded.fetched_at,
			written_at = excluded.written_at,
			bars = excluded.bars`,
		strings.ToUpper(symbol), string(period), series.Source,
		toUnixNano(series.FetchedAt), toUnixNano(s.now()), string(rawBars),
	)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", symbol, period, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite cache")
	return s.db.Close()
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
