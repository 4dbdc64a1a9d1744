package recorder

import (
	"time"

	"StockMonitor/internal/model"
)

// Outcomes of a single provider attempt.
const (
	OutcomeOK        = "OK"
	OutcomeRetryable = "RETRYABLE"
	OutcomePermanent = "PERMANENT"
	OutcomeTimeout   = "TIMEOUT"
)

// FetchAttempt is one call to one provider.
type FetchAttempt struct {
	Time       time.Time
	Symbol     string
	Period     model.Period
	Source     string
	Attempt    int // 1-based within the source
	Outcome    string
	StatusCode int
	Duration   time.Duration
	Bars       int
	Error      string
}

// Recorder persists provider attempts for later analysis of source health.
type Recorder interface {
	RecordAttempt(a *FetchAttempt) error
	Close() error
}
