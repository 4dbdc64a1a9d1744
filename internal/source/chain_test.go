package source

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"StockMonitor/internal/cache"
	"StockMonitor/internal/collector"
	"StockMonitor/internal/model"
	"StockMonitor/internal/recorder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mock.Mock
	name string
}

func (m *mockFetcher) Name() string { return m.name }

func (m *mockFetcher) Fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error) {
	args := m.Called(ctx, symbol, period)
	series, _ := args.Get(0).(*model.PriceSeries)
	return series, args.Error(1)
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testSeries(source string, closes ...float64) *model.PriceSeries {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Time:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100,
		}
	}
	return &model.PriceSeries{Symbol: "AAPL", Period: model.Period1mo, Bars: bars, Source: source, FetchedAt: t0}
}

func retryable(source string) error {
	return &collector.Failure{Source: source, Retryable: true, StatusCode: 429, Err: errors.New("too many requests")}
}

func permanentErr(source string) error {
	return &collector.Failure{Source: source, StatusCode: 404, Err: errors.New("not found")}
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func noJitter(time.Duration) time.Duration { return 0 }

func newTestChain(store cache.Store, now time.Time, rec *sleepRecorder, fetchers ...collector.Fetcher) *Chain {
	sources := make([]Source, len(fetchers))
	for i, f := range fetchers {
		sources[i] = Source{Fetcher: f, Retry: DefaultRetryPolicy()}
	}
	return NewChain(store, sources,
		WithClock(func() time.Time { return now }),
		WithSleep(rec.sleep),
		WithJitter(noJitter),
	)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))

	p.MaxDelay = 3 * time.Second
	assert.Equal(t, 3*time.Second, p.Backoff(3))
}

func TestChain_FreshCacheHitSkipsProviders(t *testing.T) {
	store := cache.NewMemoryStore(cache.WithClock(func() time.Time { return t0 }))
	require.NoError(t, store.Put(context.Background(), "AAPL", model.Period1mo, testSeries("yahoo", 1, 2, 3)))

	f := &mockFetcher{name: "yahoo"}
	chain := newTestChain(store, t0.Add(time.Minute), &sleepRecorder{}, f)

	series, err := chain.Fetch(context.Background(), "AAPL", model.Period1mo)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, series.Source)
	assert.Len(t, series.Bars, 3)
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestChain_RetriesThenFallsThrough(t *testing.T) {
	store := cache.NewMemoryStore(cache.WithClock(func() time.Time { return t0 }))
	first := &mockFetcher{name: "yahoo"}
	first.On("Fetch", mock.Anything, "AAPL", model.Period1mo).Return(nil, retryable("yahoo")).Times(3)
	second := &mockFetcher{name: "yahoo_csv"}
	second.On("Fetch", mock.Anything, "AAPL", model.Period1mo).Return(testSeries("yahoo_csv", 10, 11), nil).Once()

	rec := &sleepRecorder{}
	chain := newTestChain(store, t0, rec, first, second)

	series, err := chain.Fetch(context.Background(), "AAPL", model.Period1mo)
	require.NoError(t, err)
	assert.Equal(t, "yahoo_csv", series.Source)

	first.AssertNumberOfCalls(t, "Fetch", 3)
	second.AssertNumberOfCalls(t, "Fetch", 1)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)

	cached, writtenAt, ok := store.Get(context.Background(), "AAPL", model.Period1mo)
	require.True(t, ok, "successful fetch is written through")
	assert.Equal(t, t0, writtenAt)
	assert.Equal(t, "yahoo_csv", cached.Source)
}

func TestChain_PermanentFailureSkipsRetries(t *testing.T) {
	store := cache.NewMemoryStore()
	first := &mockFetcher{name: "yahoo"}
	first.On("Fetch", mock.Anything, "MSFT", model.Period5d).Return(nil, permanentErr("yahoo")).Once()
	second := &mockFetcher{name: "alphavantage"}
	second.On("Fetch", mock.Anything, "MSFT", model.Period5d).Return(testSeries("alphavantage", 5), nil).Once()

	rec := &sleepRecorder{}
	chain := newTestChain(store, t0, rec, first, second)

	series, err := chain.Fetch(context.Background(), "MSFT", model.Period5d)
	require.NoError(t, err)
	assert.Equal(t, "alphavantage", series.Source)
	first.AssertNumberOfCalls(t, "Fetch", 1)
	assert.Empty(t, rec.delays)
}

func TestChain_UnclassifiedErrorIsNotRetried(t *testing.T) {
	first := &mockFetcher{name: "yahoo"}
	first.On("Fetch", mock.Anything, "AAPL", model.Period1mo).Return(nil, errors.New("boom")).Once()

	chain := newTestChain(cache.NewMemoryStore(), t0, &sleepRecorder{}, first)
	_, err := chain.Fetch(context.Background(), "AAPL", model.Period1mo)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
	first.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestChain_EmptySeriesTriesNextSource(t *testing.T) {
	first := &mockFetcher{name: "yahoo"}
	first.On("Fetch", mock.Anything, "AAPL", model.Period1mo).Return(&model.PriceSeries{Symbol: "AAPL"}, nil).Once()
	second := &mockFetcher{name: "mock"}
	second.On("Fetch", mock.Anything, "AAPL", model.Period1mo).Return(testSeries("mock", 1), nil).Once()

	chain := newTestChain(cache.NewMemoryStore(), t0, &sleepRecorder{}, first, second)
	series, err := chain.Fetch(context.Background(), "AAPL", model.Period1mo)
	require.NoError(t, err)
	assert.Equal(t, "mock", series.Source)
}

func TestChain_StaleFallback(t *testing.T) {
	store := cache.NewMemoryStore(cache.WithClock(func() time.Time { return t0 }))
	require.NoError(t, store.Put(context.Background(), "AAPL", model.Period1mo, testSeries("yahoo", 7, 8, 9)))

	f := &mockFetcher{name: "yahoo"}
	f.On("Fetch", mock.Anything, "AAPL", model.Period1mo).Return(nil, permanentErr("yahoo")).Once()

	chain := newTestChain(store, t0.Add(time.Hour), &sleepRecorder{}, f)
	series, err := chain.Fetch(context.Background(), "AAPL", model.Period1mo)
	require.NoError(t, err)
	assert.Equal(t, SourceStaleCache, series.Source)
	require.Len(t, series.Bars, 3)
	assert.Equal(t, 9.0, series.Bars[2].Close)
	f.AssertExpectations(t)
}

func TestChain_DataUnavailable(t *testing.T) {
	f := &mockFetcher{name: "yahoo"}
	f.On("Fetch", mock.Anything, "ZZZZ", model.Period1mo).Return(nil, retryable("yahoo")).Times(3)

	chain := newTestChain(cache.NewMemoryStore(), t0, &sleepRecorder{}, f)
	series, err := chain.Fetch(context.Background(), "ZZZZ", model.Period1mo)
	assert.Nil(t, series)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
	f.AssertExpectations(t)
}

func TestChain_CancelDuringBackoffAbortsWithoutStale(t *testing.T) {
	store := cache.NewMemoryStore(cache.WithClock(func() time.Time { return t0 }))
	require.NoError(t, store.Put(context.Background(), "AAPL", model.Period1mo, testSeries("yahoo", 1)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &mockFetcher{name: "yahoo"}
	first.On("Fetch", mock.Anything, "AAPL", model.Period1mo).Return(nil, retryable("yahoo")).Once()
	second := &mockFetcher{name: "mock"}

	chain := NewChain(store, []Source{
		{Fetcher: first, Retry: DefaultRetryPolicy()},
		{Fetcher: second, Retry: DefaultRetryPolicy()},
	},
		WithClock(func() time.Time { return t0.Add(time.Hour) }),
		WithJitter(noJitter),
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	series, err := chain.Fetch(ctx, "AAPL", model.Period1mo)
	assert.Nil(t, series, "no stale fallback after a deadline abort")
	assert.ErrorIs(t, err, model.ErrTimeout)
	second.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestChain_DeadlineDuringFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &mockFetcher{name: "yahoo"}
	f.On("Fetch", mock.Anything, "AAPL", model.Period1mo).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, &collector.Failure{Source: "yahoo", Retryable: true, Err: context.Canceled}).Once()

	chain := newTestChain(cache.NewMemoryStore(), t0, &sleepRecorder{}, f)
	_, err := chain.Fetch(ctx, "AAPL", model.Period1mo)
	assert.ErrorIs(t, err, model.ErrTimeout)
	f.AssertNumberOfCalls(t, "Fetch", 1)
}

type failingStore struct {
	*cache.MemoryStore
}

func (failingStore) Put(context.Context, string, model.Period, *model.PriceSeries) error {
	return errors.New("disk full")
}

func TestChain_CacheWriteFailureIsNotFatal(t *testing.T) {
	f := &mockFetcher{name: "yahoo"}
	f.On("Fetch", mock.Anything, "AAPL", model.Period1mo).Return(testSeries("yahoo", 1, 2), nil).Once()

	chain := newTestChain(failingStore{cache.NewMemoryStore()}, t0, &sleepRecorder{}, f)
	series, err := chain.Fetch(context.Background(), "AAPL", model.Period1mo)
	require.NoError(t, err)
	assert.Equal(t, "yahoo", series.Source)
}

type blockingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingFetcher) Name() string { return "yahoo" }

func (b *blockingFetcher) Fetch(context.Context, string, model.Period) (*model.PriceSeries, error) {
	b.calls.Add(1)
	<-b.release
	return testSeries("yahoo", 1, 2, 3), nil
}

func TestChain_SingleFlight(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{})}
	chain := NewChain(cache.NewMemoryStore(), []Source{{Fetcher: f, Retry: DefaultRetryPolicy()}}, WithSingleFlight(0))

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*model.PriceSeries, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := chain.Fetch(context.Background(), "aapl", model.Period1mo)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for i := 1; i < callers; i++ {
		require.NotNil(t, results[i])
		assert.NotSame(t, results[0], results[i], "each caller gets its own copy")
	}
}

type releaseFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (r *releaseFetcher) Name() string { return "yahoo" }

func (r *releaseFetcher) Fetch(ctx context.Context, _ string, _ model.Period) (*model.PriceSeries, error) {
	r.calls.Add(1)
	select {
	case <-r.release:
		return testSeries("yahoo", 1, 2, 3), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestChain_SingleFlightFirstCallerCancels(t *testing.T) {
	f := &releaseFetcher{release: make(chan struct{})}
	store := cache.NewMemoryStore()
	chain := NewChain(store, []Source{{Fetcher: f, Retry: DefaultRetryPolicy()}}, WithSingleFlight(time.Minute))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := chain.Fetch(firstCtx, "AAPL", model.Period1mo)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		series *model.PriceSeries
		err    error
	}
	second := make(chan result, 1)
	go func() {
		s, err := chain.Fetch(context.Background(), "AAPL", model.Period1mo)
		second <- result{s, err}
	}()
	time.Sleep(100 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, model.ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(f.release)
	select {
	case res := <-second:
		require.NoError(t, res.err, "a live caller is not failed by another caller's cancellation")
		assert.Equal(t, "yahoo", res.series.Source)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), f.calls.Load())

	_, _, ok := store.Get(context.Background(), "AAPL", model.Period1mo)
	assert.True(t, ok, "the shared sweep still writes the cache")
}

func TestChain_SingleFlightTimeoutBoundsSweep(t *testing.T) {
	f := &releaseFetcher{release: make(chan struct{})}
	chain := NewChain(cache.NewMemoryStore(), []Source{{Fetcher: f, Retry: DefaultRetryPolicy()}}, WithSingleFlight(50*time.Millisecond))

	_, err := chain.Fetch(context.Background(), "AAPL", model.Period1mo)
	assert.ErrorIs(t, err, model.ErrTimeout)
}

func TestChain_Names(t *testing.T) {
	chain := newTestChain(cache.NewMemoryStore(), t0, &sleepRecorder{},
		&mockFetcher{name: "yahoo"}, &mockFetcher{name: "mock"})
	assert.Equal(t, []string{"yahoo", "mock"}, chain.Names())
}

type journalSpy struct {
	mu       sync.Mutex
	attempts []recorder.FetchAttempt
}

func (j *journalSpy) RecordAttempt(a *recorder.FetchAttempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, *a)
	return nil
}

func (j *journalSpy) Close() error { return nil }

func TestChain_JournalsEveryAttempt(t *testing.T) {
	first := &mockFetcher{name: "yahoo"}
	first.On("Fetch", mock.Anything, "aapl", model.Period1mo).Return(nil, retryable("yahoo")).Once()
	first.On("Fetch", mock.Anything, "aapl", model.Period1mo).Return(nil, permanentErr("yahoo")).Once()
	second := &mockFetcher{name: "mock"}
	second.On("Fetch", mock.Anything, "aapl", model.Period1mo).Return(testSeries("mock", 1, 2, 3), nil).Once()

	spy := &journalSpy{}
	chain := NewChain(cache.NewMemoryStore(), []Source{
		{Fetcher: first, Retry: DefaultRetryPolicy()},
		{Fetcher: second, Retry: DefaultRetryPolicy()},
	},
		WithClock(func() time.Time { return t0 }),
		WithSleep((&sleepRecorder{}).sleep),
		WithJitter(noJitter),
		WithRecorder(spy),
	)

	_, err := chain.Fetch(context.Background(), "aapl", model.Period1mo)
	require.NoError(t, err)

	require.Len(t, spy.attempts, 3)
	assert.Equal(t, "yahoo", spy.attempts[0].Source)
	assert.Equal(t, 1, spy.attempts[0].Attempt)
	assert.Equal(t, recorder.OutcomeRetryable, spy.attempts[0].Outcome)
	assert.Equal(t, 429, spy.attempts[0].StatusCode)

	assert.Equal(t, 2, spy.attempts[1].Attempt)
	assert.Equal(t, recorder.OutcomePermanent, spy.attempts[1].Outcome)
	assert.Equal(t, 404, spy.attempts[1].StatusCode)

	assert.Equal(t, "mock", spy.attempts[2].Source)
	assert.Equal(t, recorder.OutcomeOK, spy.attempts[2].Outcome)
	assert.Equal(t, 3, spy.attempts[2].Bars)
	assert.Equal(t, "AAPL", spy.attempts[2].Symbol)
}
