package model

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"
)

// Indicator names produced by the pipeline.
const (
	IndicatorSMA5        = "sma_5"
	IndicatorSMA10       = "sma_10"
	IndicatorSMA20       = "sma_20"
	IndicatorSMA50       = "sma_50"
	IndicatorEMA12       = "ema_12"
	IndicatorEMA26       = "ema_26"
	IndicatorRSI14       = "rsi_14"
	IndicatorMACD        = "macd"
	IndicatorMACDSignal  = "macd_signal"
	IndicatorMACDHist    = "macd_hist"
	IndicatorBBUpper20   = "bb_upper_20"
	IndicatorBBMiddle20  = "bb_middle_20"
	IndicatorBBLower20   = "bb_lower_20"
	IndicatorStochK14    = "stoch_k_14"
	IndicatorStochD14    = "stoch_d_14"
	IndicatorVolumeSMA20 = "volume_sma_20"
)

// IndicatorSet holds derived series aligned one-to-one with the bars of the
// source PriceSeries. Warm-up entries are invalid null.Float values.
type IndicatorSet struct {
	Symbol string                  `json:"symbol"`
	Period Period                  `json:"period"`
	Times  []time.Time             `json:"times"`
	Values map[string][]null.Float `json:"values"`
}

// Len returns the number of aligned entries.
func (s *IndicatorSet) Len() int { return len(s.Times) }

// Names returns the indicator names in sorted order.
func (s *IndicatorSet) Names() []string {
	names := make([]string, 0, len(s.Values))
	for name := range s.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// At returns the value of indicator name at index i.
func (s *IndicatorSet) At(name string, i int) null.Float {
	vals, ok := s.Values[name]
	if !ok || i < 0 || i >= len(vals) {
		return null.Float{}
	}
	return vals[i]
}

// Latest returns the value of indicator name at the last bar.
func (s *IndicatorSet) Latest(name string) null.Float {
	return s.At(name, len(s.Times)-1)
}

// Snapshot returns every indicator at index i.
func (s *IndicatorSet) Snapshot(i int) map[string]null.Float {
	out := make(map[string]null.Float, len(s.Values))
	for name := range s.Values {
		out[name] = s.At(name, i)
	}
	return out
}
