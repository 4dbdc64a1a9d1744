package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"StockMonitor/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// defaultSymbolMap maps internal symbols to Yahoo tickers.
var defaultSymbolMap = map[string]string{
	"SPX500": "^GSPC",
	"SPX":    "^GSPC",
	"SP500":  "^GSPC",
	"NDX":    "^NDX",
	"DJI":    "^DJI",
}

// YahooFetcher implements Fetcher using the Yahoo Finance v8 chart API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string
}

func NewYahooFetcher(opts Options) *YahooFetcher {
	base := opts.BaseURL
	if base == "" {
		base = yahooBaseURL
	}
	return &YahooFetcher{
		BaseURL:   strings.TrimRight(base, "/"),
		Client:    newHTTPClient(opts.Proxy, opts.Timeout),
		SymbolMap: defaultSymbolMap,
	}
}

func (f *YahooFetcher) Name() string { return NameYahoo }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooHeaders mimics a browser; the endpoint rejects bare clients.
func yahooHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", browserUserAgent)
	h.Set("Accept", "application/json,text/plain,*/*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}

// yahooChart is the response structure from the chart API. Quote values are
// pointers because Yahoo reports null for holidays and halted sessions.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *YahooFetcher) Fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), period)

	body, err := get(ctx, f.Client, f.Name(), endpoint, yahooHeaders())
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, permanent(f.Name(), fmt.Errorf("decode: %w", err))
	}
	if chart.Chart.Error != nil {
		return nil, permanent(f.Name(), fmt.Errorf("api error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, permanent(f.Name(), fmt.Errorf("no data returned for %s", symbol))
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	loc := time.FixedZone("exchange", result.Meta.GMTOffset)
	bars := make([]model.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		var vol int64
		if v := at(quote.Volume, i); v != nil {
			vol = int64(*v)
		}
		// Session date in exchange time, stored as a UTC calendar date.
		local := time.Unix(ts, 0).In(loc)
		bars = append(bars, model.Bar{
			Time:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   *o,
			High:   *h,
			Low:    *l,
			Close:  *c,
			Volume: vol,
		})
	}

	return newSeries(f.Name(), symbol, period, bars)
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
