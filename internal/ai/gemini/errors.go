package gemini

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"google.golang.org/genai"
)

// maxQuotaDelay is the longest server-requested wait that is still worth retrying.
const maxQuotaDelay = 30 * time.Second

// Error is returned by Generator and Embedder calls.
type Error struct {
	Err       error
	temporary bool
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Temporary reports whether a retry may succeed.
func (e *Error) Temporary() bool {
	return e.temporary
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

// classify marks server errors, timeouts and short quota waits as temporary.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) {
			// Transport failures.
			return &Error{Err: err, temporary: true}
		}
		apiErr = *apiErrPtr
	}

	switch {
	case apiErr.Code >= http.StatusInternalServerError, apiErr.Code == http.StatusRequestTimeout:
		return &Error{Err: err, temporary: true}
	case apiErr.Code == http.StatusTooManyRequests:
		return &Error{Err: err, temporary: quotaDelay(apiErr) <= maxQuotaDelay}
	default:
		return &Error{Err: err, temporary: false}
	}
}

// quotaDelay reads the wait requested by a 429 from RetryInfo details or the message.
func quotaDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}

	if m := retryAfterPattern.FindStringSubmatch(apiErr.Message); m != nil {
		if seconds, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return 0
}
