package calculator

import (
	"github.com/guregu/null/v6"
)

// FromFloats wraps plain values as defined null.Float entries.
func FromFloats(values []float64) []null.Float {
	out := make([]null.Float, len(values))
	for i, v := range values {
		out[i] = null.FloatFrom(v)
	}
	return out
}

// SMA computes the simple moving average over the trailing period entries.
// An entry is undefined until period consecutive defined values are available.
func SMA(values []null.Float, period int) []null.Float {
	out := make([]null.Float, len(values))
	if period <= 0 {
		return out
	}
	run := 0
	for i, v := range values {
		if !v.Valid {
			run = 0
			continue
		}
		run++
		if run >= period {
			out[i] = null.FloatFrom(windowMean(values[i-period+1 : i+1]))
		}
	}
	return out
}

// EMA computes the exponential moving average with k = 2/(period+1), seeded
// with the SMA of the first full window. An undefined input restarts the
// seeding.
func EMA(values []null.Float, period int) []null.Float {
	out := make([]null.Float, len(values))
	if period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	run := 0
	seeded := false
	var prev float64

	for i, v := range values {
		if !v.Valid {
			run = 0
			seeded = false
			continue
		}
		run++
		switch {
		case seeded:
			prev = v.Float64*k + prev*(1-k)
		case run >= period:
			prev = windowMean(values[i-period+1 : i+1])
			seeded = true
		default:
			continue
		}
		out[i] = null.FloatFrom(prev)
	}
	return out
}

func windowMean(window []null.Float) float64 {
	sum := 0.0
	for _, v := range window {
		sum += v.Float64
	}
	return sum / float64(len(window))
}
