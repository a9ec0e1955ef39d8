// Package httpretry wraps outbound vendor HTTP calls with rate-limit
// admission and error-kind-aware retry. The composition order is a fixed
// contract: the limiter admits the call once, then the retry loop runs.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/marketing-hub/internal/platform"
)

// Doer executes HTTP requests. Both *http.Client and *Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Waiter blocks until a request may be admitted. *ratelimit.Limiter
// satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Config tunes the retry behavior for one platform client.
type Config struct {
	Platform platform.Platform

	// MaxRetries is the total number of attempts for transient and
	// rate-limit failures (default 3).
	MaxRetries int

	// BackoffFactor is the base of the transient backoff: the sleep before
	// attempt n+1 is BackoffFactor^n seconds (default 2).
	BackoffFactor float64

	// DefaultRetryAfter is used for 429 responses that carry no
	// Retry-After header (default 60s).
	DefaultRetryAfter time.Duration
}

// Client is the retrying transport for one platform. Behavior by failure
// kind:
//
//   - transient transport error: retried with BackoffFactor^attempt sleeps
//   - 429: retried after the server-advised Retry-After (or the default)
//   - 401: returned immediately as *platform.AuthError, never retried
//   - other non-2xx: returned as *platform.APIError, not retried
//
// After exhausting retries the last error is returned, never swallowed.
type Client struct {
	next    Doer
	limiter Waiter
	cfg     Config

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a retrying transport. limiter may be nil when the caller
// handles admission elsewhere.
func New(next Doer, limiter Waiter, cfg Config) *Client {
	if next == nil {
		next = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = 60 * time.Second
	}
	return &Client{
		next:    next,
		limiter: limiter,
		cfg:     cfg,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes the request through the limiter and retry loop.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("httpretry: rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("httpretry: failed to reset request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.next.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			// Transient network/timeout failure.
			if attempt < c.cfg.MaxRetries-1 {
				delay := c.backoff(attempt)
				log.Printf("httpretry: %s request failed (attempt %d/%d), retrying in %s: %v",
					c.cfg.Platform, attempt+1, c.cfg.MaxRetries, delay, err)
				if serr := c.sleep(ctx, delay); serr != nil {
					return nil, lastErr
				}
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			body := drain(resp)
			return nil, &platform.AuthError{
				Platform: c.cfg.Platform,
				Reason:   fmt.Sprintf("status 401: %s", body),
			}

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := c.retryAfter(resp)
			drain(resp)
			lastErr = &platform.RateLimitError{Platform: c.cfg.Platform, RetryAfter: retryAfter}
			if attempt < c.cfg.MaxRetries-1 {
				log.Printf("httpretry: %s rate limit hit, waiting %s before retry", c.cfg.Platform, retryAfter)
				if serr := c.sleep(ctx, retryAfter); serr != nil {
					return nil, lastErr
				}
			}
			continue

		case resp.StatusCode >= 400:
			body := drain(resp)
			return nil, &platform.APIError{
				Platform: c.cfg.Platform,
				Status:   resp.StatusCode,
				Body:     body,
			}
		}

		return resp, nil
	}

	return nil, lastErr
}

// backoff returns BackoffFactor^attempt seconds.
func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(c.cfg.BackoffFactor, float64(attempt)) * float64(time.Second))
}

// retryAfter parses the server-advised delay, falling back to the default.
func (c *Client) retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.cfg.DefaultRetryAfter
}

// drain reads and closes the response body so the connection can be reused,
// returning the content for error reporting.
func drain(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return string(body)
}
