package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"StockMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSeries(symbol string, count int) *model.PriceSeries {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := 100.0 + float64(i)*0.37
		bars[i] = model.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   p - 0.1,
			High:   p + 1.123456789,
			Low:    p - 1.000000001,
			Close:  p,
			Volume: int64(1_000_000 + i),
		}
	}
	return &model.PriceSeries{
		Symbol:    symbol,
		Period:    model.Period1mo,
		Bars:      bars,
		Source:    "yahoo",
		FetchedAt: time.Date(2024, 2, 1, 15, 4, 5, 123456789, time.UTC),
	}
}

func assertSameBars(t *testing.T, want, got []model.Bar) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Time.Equal(got[i].Time), "bar %d time", i)
		assert.Equal(t, want[i].Open, got[i].Open, "bar %d open", i)
		assert.Equal(t, want[i].High, got[i].High, "bar %d high", i)
		assert.Equal(t, want[i].Low, got[i].Low, "bar %d low", i)
		assert.Equal(t, want[i].Close, got[i].Close, "bar %d close", i)
		assert.Equal(t, want[i].Volume, got[i].Volume, "bar %d volume", i)
	}
}

func newTestSQLite(t *testing.T, opts ...Option) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "test.db")
	s, err := NewSQLiteStore(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestIsFresh(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, IsFresh(now.Add(-4*time.Minute), 5*time.Minute, now))
	assert.False(t, IsFresh(now.Add(-5*time.Minute), 5*time.Minute, now))
	assert.False(t, IsFresh(now.Add(-time.Hour), 5*time.Minute, now))
}

func TestStores_RoundTrip(t *testing.T) {
	clock := time.Date(2024, 2, 1, 16, 0, 0, 0, time.UTC)
	sqliteStore, _ := newTestSQLite(t, WithClock(func() time.Time { return clock }))

	stores := map[string]Store{
		"memory": NewMemoryStore(WithClock(func() time.Time { return clock })),
		"sqlite": sqliteStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := createTestSeries("AAPL", 25)

			_, _, ok := store.Get(ctx, "AAPL", model.Period1mo)
			assert.False(t, ok, "empty store must miss")

			require.NoError(t, store.Put(ctx, "AAPL", model.Period1mo, want))

			got, writtenAt, ok := store.Get(ctx, "aapl", model.Period1mo)
			require.True(t, ok)
			assert.True(t, clock.Equal(writtenAt))
			assert.Equal(t, "AAPL", got.Symbol)
			assert.Equal(t, model.Period1mo, got.Period)
			assert.Equal(t, "yahoo", got.Source)
			assert.True(t, want.FetchedAt.Equal(got.FetchedAt))
			assertSameBars(t, want.Bars, got.Bars)

			_, _, ok = store.Get(ctx, "AAPL", model.Period3mo)
			assert.False(t, ok, "period is part of the key")
		})
	}
}

func TestStores_OverwriteAndCopyOnRead(t *testing.T) {
	sqliteStore, _ := newTestSQLite(t)
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := createTestSeries("MSFT", 5)
			second := createTestSeries("MSFT", 8)
			second.Source = "alphavantage"

			require.NoError(t, store.Put(ctx, "MSFT", model.Period1mo, first))
			first.Bars[0].Close = -1 // mutating the caller's copy must not leak in
			require.NoError(t, store.Put(ctx, "MSFT", model.Period1mo, second))

			got, _, ok := store.Get(ctx, "MSFT", model.Period1mo)
			require.True(t, ok)
			assert.Len(t, got.Bars, 8)
			assert.Equal(t, "alphavantage", got.Source)

			got.Bars[0].Close = 12345
			again, _, ok := store.Get(ctx, "MSFT", model.Period1mo)
			require.True(t, ok)
			assert.NotEqual(t, 12345.0, again.Bars[0].Close)
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	want := createTestSeries("TSLA", 10)

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "TSLA", model.Period1mo, want))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, _, ok := reopened.Get(context.Background(), "TSLA", model.Period1mo)
	require.True(t, ok)
	assertSameBars(t, want.Bars, got.Bars)
}

func TestSQLiteStore_CorruptRecordIsMiss(t *testing.T) {
	s, _ := newTestSQLite(t)

	_, err := s.db.Exec(`INSERT INTO price_cache (symbol, period, source, fetched_at, written_at, bars)
		VALUES ('BAD', '1mo', 'yahoo', 0, ?, '{not json')`, time.Now().UnixNano())
	require.NoError(t, err)

	series, writtenAt, ok := s.Get(context.Background(), "BAD", model.Period1mo)
	assert.False(t, ok)
	assert.Nil(t, series)
	assert.True(t, writtenAt.IsZero())
}

func TestSQLiteStore_UnknownPeriodIsMiss(t *testing.T) {
	s, _ := newTestSQLite(t)

	_, err := s.db.Exec(`INSERT INTO price_cache (symbol, period, source, fetched_at, written_at, bars)
		VALUES ('AAPL', '2w', 'yahoo', 0, ?, '[]')`, time.Now().UnixNano())
	require.NoError(t, err)

	series, _, ok := s.Get(context.Background(), "AAPL", model.Period("2w"))
	assert.False(t, ok)
	assert.Nil(t, series)
}

func TestStores_PutRejectsUnknownPeriod(t *testing.T) {
	s, _ := newTestSQLite(t)
	for name, store := range map[string]Store{"sqlite": s, "memory": NewMemoryStore()} {
		t.Run(name, func(t *testing.T) {
			err := store.Put(context.Background(), "AAPL", model.Period("2w"), createTestSeries("AAPL", 3))
			assert.ErrorIs(t, err, model.ErrInvalidPeriod)
		})
	}
}

func TestSQLiteStore_PutNil(t *testing.T) {
	s, _ := newTestSQLite(t)
	assert.Error(t, s.Put(context.Background(), "X", model.Period1d, nil))
}

func TestMemoryStore_Len(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "A", model.Period1d, createTestSeries("A", 1)))
	require.NoError(t, m.Put(ctx, "A", model.Period1d, createTestSeries("A", 2)))
	require.NoError(t, m.Put(ctx, "B", model.Period1d, createTestSeries("B", 1)))
	assert.Equal(t, 2, m.Len())
}
