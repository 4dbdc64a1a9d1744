package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"StockMonitor/internal/model"
)

// Fetcher is one upstream source of daily price history.
//
// Fetch issues a single request and never retries. Failures are returned as
// *Failure so the caller can decide whether another attempt makes sense.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error)
}

// Options carries the settings shared by all fetchers.
type Options struct {
	BaseURL string
	APIKey  string
	Proxy   string
	Timeout time.Duration
	Seed    int64 // mock only; 0 means time-based
}

// Names of the built-in fetchers as used in configuration.
const (
	NameYahoo        = "yahoo"
	NameYahooCSV     = "yahoo_csv"
	NameAlphaVantage = "alphavantage"
	NameVsTrader     = "vstrader"
	NameMock         = "mock"
)

// New builds a fetcher by its configuration name.
func New(name string, opts Options) (Fetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	switch strings.ToLower(name) {
	case NameYahoo:
		return NewYahooFetcher(opts), nil
	case NameYahooCSV:
		return NewYahooCSVFetcher(opts), nil
	case NameAlphaVantage:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("%s: api_key is required", NameAlphaVantage)
		}
		return NewAlphaVantageFetcher(opts), nil
	case NameVsTrader:
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("%s: base_url is required", NameVsTrader)
		}
		return NewVsTraderFetcher(opts), nil
	case NameMock:
		return NewMockFetcher(opts.Seed), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", name)
	}
}

// newSeries normalizes bars into a series, failing permanently when nothing
// usable is left.
// sessionSlack widens a calendar lookback so that weekends and exchange
// holidays cannot leave a short period without its most recent session.
const sessionSlack = 4 * 24 * time.Hour

// lookbackStart is the earliest date an adapter with a calendar filter asks
// for. The result is trimmed afterwards with lastSessions.
func lookbackStart(period model.Period, now time.Time) time.Time {
	return model.DateOf(period.Start(now)).Add(-sessionSlack)
}

// lastSessions normalizes bars and keeps the most recent period.TradingDays().
func lastSessions(bars []model.Bar, period model.Period) []model.Bar {
	bars = model.NormalizeBars(bars)
	if n := period.TradingDays(); n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars
}

func newSeries(source, symbol string, period model.Period, bars []model.Bar) (*model.PriceSeries, error) {
	bars = model.NormalizeBars(bars)
	if len(bars) == 0 {
		return nil, permanent(source, fmt.Errorf("no usable bars for %s", symbol))
	}
	return &model.PriceSeries{
		Symbol:    strings.ToUpper(symbol),
		Period:    period,
		Bars:      bars,
		Source:    source,
		FetchedAt: time.Now().UTC(),
	}, nil
}
