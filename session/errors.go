package session

import (
	"context"
	"errors"
	"strings"
)

// ErrorClass tells the saver whether a failed write is worth retrying.
type ErrorClass int

const (
	ErrorClassRetryable ErrorClass = iota
	ErrorClassFatal
	ErrorClassUnknown
)

func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyStoreError sorts store errors into retryable and fatal ones.
// Unknown errors are retried.
func ClassifyStoreError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassFatal
	}
	lower := strings.ToLower(err.Error())

	for _, pattern := range []string{
		"connection refused", "connection reset", "broken pipe", "timeout",
		"too many connections", "database is locked", "deadlock", "try again",
	} {
		if strings.Contains(lower, pattern) {
			return ErrorClassRetryable
		}
	}
	for _, pattern := range []string{
		"permission denied", "read-only", "authentication failed",
		"no space left", "database not open", "does not exist",
	} {
		if strings.Contains(lower, pattern) {
			return ErrorClassFatal
		}
	}
	return ErrorClassUnknown
}
