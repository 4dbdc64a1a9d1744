package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StockMonitor/internal/model"
)

type memoryRecord struct {
	series    *model.PriceSeries
	writtenAt time.Time
}

// MemoryStore keeps series in process memory. Used when no SQLite path is
// configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		now:     o.now,
	}
}

func (m *MemoryStore) Get(_ context.Context, symbol string, period model.Period) (*model.PriceSeries, time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key(symbol, period)]
	if !ok {
		return nil, time.Time{}, false
	}
	return rec.series.Clone(), rec.writtenAt, true
}

func (m *MemoryStore) Put(_ context.Context, symbol string, period model.Period, series *model.PriceSeries) error {
	if series == nil {
		return fmt.Errorf("put %s/%s: nil series", symbol, period)
	}
	if !period.Valid() {
		return fmt.Errorf("put %s: %w: %q", symbol, model.ErrInvalidPeriod, period)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key(symbol, period)] = memoryRecord{
		series:    series.Clone(),
		writtenAt: m.now(),
	}
	return nil
}

// Len returns the number of cached keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Close() error { return nil }
