package collector

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure is a classified fetch error.
type Failure struct {
	Source     string
	Retryable  bool
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (f *Failure) Error() string {
	kind := "permanent"
	if f.Retryable {
		kind = "transient"
	}
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failure (status %d): %v", f.Source, kind, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("%s: %s failure: %v", f.Source, kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsRetryable reports whether err is a Failure worth another attempt.
// Unclassified errors are not retried.
func IsRetryable(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Retryable
	}
	return false
}

func transient(source string, err error) *Failure {
	return &Failure{Source: source, Retryable: true, Err: err}
}

func permanent(source string, err error) *Failure {
	return &Failure{Source: source, Retryable: false, Err: err}
}

// classifyStatus maps a non-200 HTTP status to a Failure. Rate limiting and
// server errors are transient, every other status is permanent for the source.
func classifyStatus(source string, status int, body []byte) *Failure {
	f := &Failure{
		Source:     source,
		StatusCode: status,
		Err:        fmt.Errorf("unexpected status, body: %s", truncate(body, 200)),
	}
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		f.Retryable = true
	}
	return f
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
