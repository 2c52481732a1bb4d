package fetch

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrHTTPStatus matches any *StatusError via errors.Is.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// ErrBodyTooLarge is returned when a page exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (statusErr *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", statusErr.StatusCode, statusErr.URL)
}

// Is lets errors.Is(err, ErrHTTPStatus) match any status error.
func (statusErr *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// Retryable reports whether the status is worth another attempt: 5xx and
// 429 are, other 4xx are not.
func (statusErr *StatusError) Retryable() bool {
	return statusErr.StatusCode >= 500 || statusErr.StatusCode == 429
}

// isRetryableError returns true if the error warrants a retry attempt.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, ErrBodyTooLarge) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := err.Error()
	retryablePatterns := []string{
		"connection reset",
		"connection refused",
		"timeout",
		"EOF",
		"broken pipe",
		"temporary failure",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
