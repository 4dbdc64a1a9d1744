package calculator

import (
	"math"

	"github.com/guregu/null/v6"
)

// Bollinger returns bands k population standard deviations around SMA(period).
func Bollinger(closes []float64, period int, k float64) (upper, middle, lower []null.Float) {
	upper = make([]null.Float, len(closes))
	lower = make([]null.Float, len(closes))
	middle = SMA(FromFloats(closes), period)

	for i, m := range middle {
		if !m.Valid {
			continue
		}
		variance := 0.0
		for _, c := range closes[i-period+1 : i+1] {
			d := c - m.Float64
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = null.FloatFrom(m.Float64 + k*sd)
		lower[i] = null.FloatFrom(m.Float64 - k*sd)
	}
	return upper, middle, lower
}
