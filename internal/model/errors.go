package model

import "errors"

// Errors that cross the monitor facade. Everything else is handled inside the
// source chain.
var (
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInsufficientData = errors.New("insufficient data")
	ErrTimeout          = errors.New("timeout")
)
