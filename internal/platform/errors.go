package platform

import (
	"fmt"
	"time"
)

// APIError is any non-2xx vendor response that is not an auth or rate-limit
// failure. It carries the status code and raw body for caller inspection and
// is never retried by the transport layer.
type APIError struct {
	Platform Platform
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: API error: %s", e.Platform, e.Body)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Platform, e.Status, e.Body)
}

// RateLimitError signals vendor throttling (HTTP 429). RetryAfter is the
// server-advised delay, or the configured default when the server sent none.
type RateLimitError struct {
	Platform   Platform
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded (retry after %s)", e.Platform, e.RetryAfter)
}

// AuthError is a credential or token failure. It is never retried by the
// transport layer; the owning client clears its auth state so the next call
// re-authenticates.
type AuthError struct {
	Platform Platform
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Platform, e.Reason)
}
