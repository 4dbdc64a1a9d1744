package collector

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StockMonitor/internal/model"
)

// YahooCSVFetcher downloads history from the Yahoo v7 CSV endpoint.
type YahooCSVFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string
	now       func() time.Time
}

func NewYahooCSVFetcher(opts Options) *YahooCSVFetcher {
	base := opts.BaseURL
	if base == "" {
		base = yahooBaseURL
	}
	return &YahooCSVFetcher{
		BaseURL:   strings.TrimRight(base, "/"),
		Client:    newHTTPClient(opts.Proxy, opts.Timeout),
		SymbolMap: defaultSymbolMap,
		now:       time.Now,
	}
}

func (f *YahooCSVFetcher) Name() string { return NameYahooCSV }

func (f *YahooCSVFetcher) Fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error) {
	ticker := strings.ToUpper(symbol)
	if mapped, ok := f.SymbolMap[ticker]; ok {
		ticker = mapped
	}
	now := f.now().UTC()
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(lookbackStart(period, now).Unix(), 10))
	q.Set("period2", strconv.FormatInt(now.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	endpoint := fmt.Sprintf("%s/v7/finance/download/%s?%s", f.BaseURL, url.PathEscape(ticker), q.Encode())

	h := http.Header{}
	h.Set("User-Agent", browserUserAgent)
	h.Set("Accept", "text/csv,*/*")
	body, err := get(ctx, f.Client, f.Name(), endpoint, h)
	if err != nil {
		return nil, err
	}

	bars, err := parseYahooCSV(body)
	if err != nil {
		return nil, permanent(f.Name(), err)
	}
	return newSeries(f.Name(), symbol, period, lastSessions(bars, period))
}

// parseYahooCSV reads "Date,Open,High,Low,Close,Adj Close,Volume" rows.
// Rows with a "null" or unparsable price are skipped.
func parseYahooCSV(data []byte) ([]model.Bar, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv missing column %q", required)
		}
	}
	volCol, hasVol := cols["volume"]

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	bars := make([]model.Bar, 0, len(records))
	for _, rec := range records {
		field := func(i int) string {
			if i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		date, err := time.Parse("2006-01-02", field(cols["date"]))
		if err != nil {
			continue
		}
		var prices [4]float64
		ok := true
		for j, name := range []string{"open", "high", "low", "close"} {
			v, err := strconv.ParseFloat(field(cols[name]), 64)
			if err != nil {
				ok = false
				break
			}
			prices[j] = v
		}
		if !ok {
			continue
		}
		var vol int64
		if hasVol {
			if v, err := strconv.ParseFloat(field(volCol), 64); err == nil {
				vol = int64(v)
			}
		}
		bars = append(bars, model.Bar{
			Time:   date,
			Open:   prices[0],
			High:   prices[1],
			Low:    prices[2],
			Close:  prices[3],
			Volume: vol,
		})
	}
	return bars, nil
}
