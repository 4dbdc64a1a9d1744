package collector

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"StockMonitor/internal/model"
)

// mockBasePrices seeds the random walk per symbol.
var mockBasePrices = map[string]float64{
	"AAPL":  150,
	"GOOGL": 2500,
	"MSFT":  300,
	"TSLA":  200,
	"AMZN":  3000,
}

const mockDefaultPrice = 100.0

// MockFetcher generates a synthetic random walk for development and demos.
// It never fails.
type MockFetcher struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewMockFetcher creates a generator; seed 0 uses the current time.
func NewMockFetcher(seed int64) *MockFetcher {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockFetcher{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

func (m *MockFetcher) Name() string { return NameMock }

func (m *MockFetcher) Fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(m.Name(), err)
	}
	count := period.TradingDays()
	end := model.DateOf(m.now().UTC())
	price, ok := mockBasePrices[strings.ToUpper(symbol)]
	if !ok {
		price = mockDefaultPrice
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		open := price
		price *= 1 + (m.rng.Float64()*2-1)*0.02 // ±2% per day
		spread := math.Abs(price-open) + price*0.005*m.rng.Float64()
		bars[i] = model.Bar{
			Time:   end.AddDate(0, 0, i-count+1),
			Open:   round2(open),
			High:   round2(math.Max(open, price) + spread/2),
			Low:    round2(math.Min(open, price) - spread/2),
			Close:  round2(price),
			Volume: 1_000_000 + m.rng.Int63n(9_000_000),
		}
	}
	return newSeries(m.Name(), symbol, period, bars)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
