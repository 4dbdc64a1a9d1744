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

// VsTraderFetcher implements Fetcher using the vstrader REST API.
type VsTraderFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewVsTraderFetcher(opts Options) *VsTraderFetcher {
	return &VsTraderFetcher{
		BaseURL: strings.TrimRight(opts.BaseURL, "/"),
		APIKey:  opts.APIKey,
		Client:  newHTTPClient(opts.Proxy, opts.Timeout),
	}
}

func (f *VsTraderFetcher) Name() string { return NameVsTrader }

// vsBar is the expected JSON shape from the vstrader API.
type vsBar struct {
	Timestamp int64    `json:"timestamp"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	Volume    float64  `json:"volume"`
}

func (f *VsTraderFetcher) Fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("limit", strconv.Itoa(period.TradingDays()))
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?%s", f.BaseURL, q.Encode())

	h := http.Header{}
	h.Set("Accept", "application/json")
	if f.APIKey != "" {
		h.Set("Authorization", "Bearer "+f.APIKey)
	}
	body, err := get(ctx, f.Client, f.Name(), endpoint, h)
	if err != nil {
		return nil, err
	}

	var vsBars []vsBar
	if err := json.Unmarshal(body, &vsBars); err != nil {
		return nil, permanent(f.Name(), fmt.Errorf("decode bars: %w", err))
	}
	bars := make([]model.Bar, 0, len(vsBars))
	for _, vb := range vsBars {
		if vb.Open == nil || vb.High == nil || vb.Low == nil || vb.Close == nil {
			continue
		}
		bars = append(bars, model.Bar{
			Time:   time.Unix(vb.Timestamp, 0).UTC(),
			Open:   *vb.Open,
			High:   *vb.High,
			Low:    *vb.Low,
			Close:  *vb.Close,
			Volume: int64(vb.Volume),
		})
	}
	return newSeries(f.Name(), symbol, period, bars)
}
