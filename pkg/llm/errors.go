package llm

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is a provider failure with enough structure for retry decisions.
type APIError struct {
	Provider string
	Status   int // 0 for transport errors with no HTTP response
	Message  string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("llm: %s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("llm: %s: status %d: %s", e.Provider, e.Status, e.Message)
}

// IsRetryable classifies a completion failure. HTTP status decides first:
// 429 and 5xx are retryable, other statuses are not. Substring heuristics
// apply only to statusless transport errors, where the status cannot decide.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"temporar", // temporary / temporarily
		"unexpected eof",
		"no such host",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
