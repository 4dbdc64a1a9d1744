package calculator

import (
	"math"

	"github.com/guregu/null/v6"

	"StockMonitor/internal/model"
)

// RollingRange returns the highest high and lowest low over the trailing
// period bars. Entries before index period-1 are undefined.
func RollingRange(bars []model.Bar, period int) (highs, lows []null.Float) {
	highs = make([]null.Float, len(bars))
	lows = make([]null.Float, len(bars))
	if period <= 0 {
		return highs, lows
	}
	for i := period - 1; i < len(bars); i++ {
		high := math.Inf(-1)
		low := math.Inf(1)
		for _, b := range bars[i-period+1 : i+1] {
			high = math.Max(high, b.High)
			low = math.Min(low, b.Low)
		}
		highs[i] = null.FloatFrom(high)
		lows[i] = null.FloatFrom(low)
	}
	return highs, lows
}

// rangePosition returns where current sits within [low, high] as 0..1.
// A zero-width range has no position.
func rangePosition(current, high, low float64) (float64, bool) {
	if high <= low {
		return 0, false
	}
	return (current - low) / (high - low), true
}
