package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"StockMonitor/internal/cache"
	"StockMonitor/internal/collector"
	"StockMonitor/internal/model"
	"StockMonitor/internal/recorder"
)

// Tags set on PriceSeries.Source for series served from the store.
const (
	SourceCache      = "cache"
	SourceStaleCache = "stale-cache"
)

// DefaultTTL is how long a cached series is served without re-fetching.
const DefaultTTL = 5 * time.Minute

// DefaultFlightTimeout bounds a shared single-flight sweep.
const DefaultFlightTimeout = 30 * time.Second

// Source is one entry of the ordered fallback list.
type Source struct {
	Fetcher collector.Fetcher
	Retry   RetryPolicy
}

// Chain resolves a series from the cache, then from each source in order, and
// finally from a stale cache entry.
type Chain struct {
	store   cache.Store
	sources []Source
	ttl     time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func(max time.Duration) time.Duration
	group   *singleflight.Group
	flight  time.Duration
	journal recorder.Recorder
}

type Option func(*Chain)

// WithTTL sets the freshness window for cache hits.
func WithTTL(ttl time.Duration) Option {
	return func(c *Chain) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// WithSleep replaces the backoff wait. The function must honor ctx.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Chain) { c.sleep = sleep }
}

// WithJitter replaces the jitter source.
func WithJitter(jitter func(max time.Duration) time.Duration) Option {
	return func(c *Chain) { c.jitter = jitter }
}

// WithSingleFlight collapses concurrent fetches of the same symbol and period
// into one sweep. The sweep keeps the first caller's context values but not
// its cancellation, and is bounded by timeout (DefaultFlightTimeout when 0).
// Every caller stops waiting when its own context ends.
func WithSingleFlight(timeout time.Duration) Option {
	return func(c *Chain) {
		c.group = &singleflight.Group{}
		if timeout > 0 {
			c.flight = timeout
		}
	}
}

// WithRecorder journals every provider attempt.
func WithRecorder(r recorder.Recorder) Option {
	return func(c *Chain) {
		if r != nil {
			c.journal = r
		}
	}
}

func NewChain(store cache.Store, sources []Source, opts ...Option) *Chain {
	c := &Chain{
		store:   store,
		sources: sources,
		ttl:     DefaultTTL,
		now:     time.Now,
		sleep:   sleepContext,
		jitter:  randomJitter,
		flight:  DefaultFlightTimeout,
		journal: recorder.NewNoopRecorder(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Names returns the source names in sweep order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Fetcher.Name()
	}
	return names
}

// Fetch returns the series for symbol and period. The only errors returned
// are model.ErrDataUnavailable and model.ErrTimeout (wrapped).
func (c *Chain) Fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error) {
	if c.group == nil {
		return c.fetch(ctx, symbol, period)
	}
	key := strings.ToUpper(symbol) + "|" + string(period)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flight)
		defer cancel()
		return c.fetch(fctx, symbol, period)
	})
	select {
	case <-ctx.Done():
		return nil, timeoutError(symbol, period, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// each waiter gets its own copy
		return res.Val.(*model.PriceSeries).Clone(), nil
	}
}

func (c *Chain) fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error) {
	if series, writtenAt, ok := c.store.Get(ctx, symbol, period); ok && cache.IsFresh(writtenAt, c.ttl, c.now()) {
		series.Source = SourceCache
		return series, nil
	}

	var lastErr error
	for _, src := range c.sources {
		series, err := c.attempt(ctx, src, symbol, period)
		if err == nil {
			if putErr := c.store.Put(ctx, symbol, period, series); putErr != nil {
				log.Printf("[WARN] cache write %s/%s failed: %v", symbol, period, putErr)
			}
			return series, nil
		}
		if errors.Is(err, model.ErrTimeout) {
			return nil, err
		}
		lastErr = err
		log.Printf("[WARN] source %s gave up on %s/%s: %v", src.Fetcher.Name(), symbol, period, err)
	}

	if series, writtenAt, ok := c.store.Get(ctx, symbol, period); ok {
		log.Printf("[WARN] serving stale %s/%s written at %s", symbol, period, writtenAt.Format(time.RFC3339))
		series.Source = SourceStaleCache
		return series, nil
	}
	return nil, fmt.Errorf("%w: %s/%s: %v", model.ErrDataUnavailable, symbol, period, lastErr)
}

// attempt runs one source with its retry policy. A cancelled context is
// reported as model.ErrTimeout.
func (c *Chain) attempt(ctx context.Context, src Source, symbol string, period model.Period) (*model.PriceSeries, error) {
	name := src.Fetcher.Name()
	var lastErr error

	for try := 0; try <= src.Retry.MaxRetries; try++ {
		if try > 0 {
			delay := src.Retry.Backoff(try) + c.jitter(src.Retry.MaxJitter)
			log.Printf("[INFO] retrying %s for %s/%s in %s (retry %d/%d)", name, symbol, period, delay, try, src.Retry.MaxRetries)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, timeoutError(symbol, period, err)
			}
		}

		started := c.now()
		series, err := src.Fetcher.Fetch(ctx, symbol, period)
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.record(name, symbol, period, try+1, started, nil, ctxErr)
			return nil, timeoutError(symbol, period, ctxErr)
		}
		if err == nil && series.Len() == 0 {
			err = &collector.Failure{Source: name, Err: errors.New("empty series")}
		}
		c.record(name, symbol, period, try+1, started, series, err)
		if err == nil {
			return series, nil
		}

		lastErr = err
		if !collector.IsRetryable(err) {
			return nil, err
		}
		log.Printf("[WARN] %s attempt %d/%d for %s/%s failed: %v", name, try+1, src.Retry.MaxRetries+1, symbol, period, err)
	}
	return nil, lastErr
}

func (c *Chain) record(name, symbol string, period model.Period, try int, started time.Time, series *model.PriceSeries, err error) {
	a := &recorder.FetchAttempt{
		Time:     started,
		Symbol:   strings.ToUpper(symbol),
		Period:   period,
		Source:   name,
		Attempt:  try,
		Duration: c.now().Sub(started),
	}
	switch {
	case err == nil:
		a.Outcome = recorder.OutcomeOK
		a.Bars = series.Len()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		a.Outcome = recorder.OutcomeTimeout
	case collector.IsRetryable(err):
		a.Outcome = recorder.OutcomeRetryable
	default:
		a.Outcome = recorder.OutcomePermanent
	}
	if err != nil {
		a.Error = err.Error()
		var f *collector.Failure
		if errors.As(err, &f) {
			a.StatusCode = f.StatusCode
		}
	}
	if jerr := c.journal.RecordAttempt(a); jerr != nil {
		log.Printf("[WARN] journal %s attempt for %s/%s: %v", name, symbol, period, jerr)
	}
}

func timeoutError(symbol string, period model.Period, cause error) error {
	return fmt.Errorf("%w: %s/%s: %v", model.ErrTimeout, symbol, period, cause)
}
