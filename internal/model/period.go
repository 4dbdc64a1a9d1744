package model

import (
	"fmt"
	"strings"
	"time"
)

// Period is the requested lookback window of a price series.
type Period string

const (
	Period1d  Period = "1d"
	Period5d  Period = "5d"
	Period1mo Period = "1mo"
	Period3mo Period = "3mo"
	Period6mo Period = "6mo"
	Period1y  Period = "1y"
)

// Periods lists every supported period, shortest first.
var Periods = []Period{Period1d, Period5d, Period1mo, Period3mo, Period6mo, Period1y}

// ParsePeriod validates a period string such as "1mo".
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

// Valid reports whether p is one of the supported periods.
func (p Period) Valid() bool {
	for _, v := range Periods {
		if p == v {
			return true
		}
	}
	return false
}

func (p Period) String() string { return string(p) }

// Start returns the beginning of the lookback window ending at now.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case Period1d:
		return now.AddDate(0, 0, -1)
	case Period5d:
		return now.AddDate(0, 0, -5)
	case Period1mo:
		return now.AddDate(0, -1, 0)
	case Period3mo:
		return now.AddDate(0, -3, 0)
	case Period6mo:
		return now.AddDate(0, -6, 0)
	case Period1y:
		return now.AddDate(-1, 0, 0)
	}
	return now
}

// TradingDays approximates the number of daily bars in the period.
func (p Period) TradingDays() int {
	switch p {
	case Period1d:
		return 1
	case Period5d:
		return 5
	case Period1mo:
		return 22
	case Period3mo:
		return 63
	case Period6mo:
		return 126
	case Period1y:
		return 252
	}
	return 0
}
