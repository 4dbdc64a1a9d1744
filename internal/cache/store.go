package cache

import (
	"context"
	"strings"
	"time"

	"StockMonitor/internal/model"
)

// Store persists price series keyed by (symbol, period).
//
// Get never fails: corrupt or unreadable records are reported as a miss.
// Put overwrites any previous record and stamps it with the store's clock.
type Store interface {
	Get(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, time.Time, bool)
	Put(ctx context.Context, symbol string, period model.Period, series *model.PriceSeries) error
	Close() error
}

// IsFresh reports whether a record written at writtenAt is younger than ttl.
func IsFresh(writtenAt time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(writtenAt) < ttl
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the wall clock used to stamp writes.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func key(symbol string, period model.Period) string {
	return strings.ToUpper(symbol) + "|" + string(period)
}
