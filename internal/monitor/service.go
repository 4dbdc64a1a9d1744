package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"StockMonitor/internal/calculator"
	"StockMonitor/internal/model"
)

// MaxSymbolLength bounds accepted ticker symbols.
const MaxSymbolLength = 20

// SeriesSource resolves price series, typically a *source.Chain.
type SeriesSource interface {
	Fetch(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error)
}

// Service is the entry point used by the HTTP layer, the CLI and the
// scheduler.
type Service struct {
	source SeriesSource
}

func NewService(source SeriesSource) *Service {
	return &Service{source: source}
}

// NormalizeSymbol trims and upper-cases symbol and checks its length.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" || len(s) > MaxSymbolLength {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// FetchSeries returns the daily series for symbol over period.
func (s *Service) FetchSeries(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidPeriod, period)
	}

	series, err := s.source.Fetch(ctx, sym, period)
	if err != nil {
		return nil, terminal(err)
	}
	if series.Symbol == "" {
		series.Symbol = sym
	}
	return series, nil
}

// ComputeIndicators derives the indicator set for series.
func (s *Service) ComputeIndicators(series *model.PriceSeries) (*model.IndicatorSet, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: no series", model.ErrInsufficientData)
	}
	return calculator.ComputeIndicators(series)
}

// terminal keeps only the errors callers are expected to handle.
func terminal(err error) error {
	switch {
	case errors.Is(err, model.ErrTimeout), errors.Is(err, model.ErrDataUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", model.ErrTimeout, err)
	default:
		log.Printf("[ERROR] unexpected source error: %v", err)
		return fmt.Errorf("%w: %v", model.ErrDataUnavailable, err)
	}
}
