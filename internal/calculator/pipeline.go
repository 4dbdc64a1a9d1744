package calculator

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"

	"StockMonitor/internal/model"
)

// Standard parameters of the indicator set.
const (
	RSIPeriod        = 14
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignal       = 9
	BollingerPeriod  = 20
	BollingerK       = 2.0
	StochasticPeriod = 14
	StochasticSmooth = 3
	VolumePeriod     = 20
)

// ComputeIndicators derives the full indicator set from series. It does not
// modify series and is safe for concurrent use.
func ComputeIndicators(series *model.PriceSeries) (*model.IndicatorSet, error) {
	if series.Len() < 2 {
		return nil, fmt.Errorf("%w: %d bars", model.ErrInsufficientData, series.Len())
	}

	bars := series.Bars
	closes := series.Closes()
	closeValues := FromFloats(closes)

	volumes := make([]float64, len(bars))
	times := make([]time.Time, len(bars))
	for i, b := range bars {
		volumes[i] = float64(b.Volume)
		times[i] = b.Time
	}

	macd, signal, hist := MACD(closes, MACDFast, MACDSlow, MACDSignal)
	upper, middle, lower := Bollinger(closes, BollingerPeriod, BollingerK)
	stochK, stochD := Stochastic(bars, StochasticPeriod, StochasticSmooth)

	values := map[string][]null.Float{
		model.IndicatorSMA5:        SMA(closeValues, 5),
		model.IndicatorSMA10:       SMA(closeValues, 10),
		model.IndicatorSMA20:       SMA(closeValues, 20),
		model.IndicatorSMA50:       SMA(closeValues, 50),
		model.IndicatorEMA12:       EMA(closeValues, 12),
		model.IndicatorEMA26:       EMA(closeValues, 26),
		model.IndicatorRSI14:       RSI(closes, RSIPeriod),
		model.IndicatorMACD:        macd,
		model.IndicatorMACDSignal:  signal,
		model.IndicatorMACDHist:    hist,
		model.IndicatorBBUpper20:   upper,
		model.IndicatorBBMiddle20:  middle,
		model.IndicatorBBLower20:   lower,
		model.IndicatorStochK14:    stochK,
		model.IndicatorStochD14:    stochD,
		model.IndicatorVolumeSMA20: SMA(FromFloats(volumes), VolumePeriod),
	}

	return &model.IndicatorSet{
		Symbol: series.Symbol,
		Period: series.Period,
		Times:  times,
		Values: values,
	}, nil
}
