package calculator

import (
	"github.com/guregu/null/v6"

	"StockMonitor/internal/model"
)

// Stochastic returns %K over period bars and %D as the SMA(smooth) of %K.
// %K is undefined where the window's high equals its low.
func Stochastic(bars []model.Bar, period, smooth int) (k, d []null.Float) {
	highs, lows := RollingRange(bars, period)
	k = make([]null.Float, len(bars))
	for i, b := range bars {
		if !highs[i].Valid {
			continue
		}
		if pos, ok := rangePosition(b.Close, highs[i].Float64, lows[i].Float64); ok {
			k[i] = null.FloatFrom(100 * pos)
		}
	}
	return k, SMA(k, smooth)
}
