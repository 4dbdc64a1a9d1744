package calculator

import (
	"github.com/guregu/null/v6"
)

// MACD returns the MACD line (EMA(fast) - EMA(slow)), its signal line
// (EMA(signal) of the MACD line) and the histogram (MACD - signal).
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist []null.Float) {
	values := FromFloats(closes)
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	macd = make([]null.Float, len(closes))
	for i := range closes {
		if fastEMA[i].Valid && slowEMA[i].Valid {
			macd[i] = null.FloatFrom(fastEMA[i].Float64 - slowEMA[i].Float64)
		}
	}

	sig = EMA(macd, signal)
	hist = make([]null.Float, len(closes))
	for i := range closes {
		if macd[i].Valid && sig[i].Valid {
			hist[i] = null.FloatFrom(macd[i].Float64 - sig[i].Float64)
		}
	}
	return macd, sig, hist
}
