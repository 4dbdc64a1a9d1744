package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StockMonitor/internal/model"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantageFetcher implements Fetcher using the TIME_SERIES_DAILY endpoint.
type AlphaVantageFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	now     func() time.Time
}

func NewAlphaVantageFetcher(opts Options) *AlphaVantageFetcher {
	base := opts.BaseURL
	if base == "" {
		base = alphaVantageBaseURL
	}
	return &AlphaVantageFetcher{
		BaseURL: strings.TrimRight(base, "/"),
		APIKey:  opts.APIKey,
		Client:  newHTTPClient(opts.Proxy, opts.Timeout),
		now:     time.Now,
	}
}

func (f *AlphaVantageFetcher) Name() string { return NameAlphaVantage }

type avDaily struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type avResponse struct {
	Series       map[string]avDaily `json:"Time Series (Daily)"`
	Note         string             `json:"Note"`
	Information  string             `json:"Information"`
	ErrorMessage string             `json:"Error Message"`
}

func (f *AlphaVantageFetcher) Fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error) {
	// compact returns the latest 100 sessions
	outputSize := "compact"
	if period.TradingDays() > 100 {
		outputSize = "full"
	}
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("outputsize", outputSize)
	q.Set("apikey", f.APIKey)
	endpoint := f.BaseURL + "/query?" + q.Encode()

	h := http.Header{}
	h.Set("Accept", "application/json")
	body, err := get(ctx, f.Client, f.Name(), endpoint, h)
	if err != nil {
		return nil, err
	}

	var resp avResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, permanent(f.Name(), fmt.Errorf("decode: %w", err))
	}
	switch {
	case resp.Note != "":
		return nil, transient(f.Name(), fmt.Errorf("throttled: %s", resp.Note))
	case resp.Information != "":
		return nil, transient(f.Name(), fmt.Errorf("throttled: %s", resp.Information))
	case resp.ErrorMessage != "":
		return nil, permanent(f.Name(), fmt.Errorf("api error: %s", resp.ErrorMessage))
	case len(resp.Series) == 0:
		return nil, permanent(f.Name(), fmt.Errorf("no time series for %s", symbol))
	}

	start := lookbackStart(period, f.now().UTC())
	bars := make([]model.Bar, 0, len(resp.Series))
	for day, d := range resp.Series {
		date, err := time.Parse("2006-01-02", day)
		if err != nil || date.Before(start) {
			continue
		}
		bar, ok := d.toBar(date)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	return newSeries(f.Name(), symbol, period, lastSessions(bars, period))
}

func (d avDaily) toBar(date time.Time) (model.Bar, bool) {
	var prices [4]float64
	for i, s := range []string{d.Open, d.High, d.Low, d.Close} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Bar{}, false
		}
		prices[i] = v
	}
	vol, _ := strconv.ParseInt(d.Volume, 10, 64)
	return model.Bar{
		Time:   date,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: vol,
	}, true
}
