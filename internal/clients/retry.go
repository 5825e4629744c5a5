package clients

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy controls how failed source requests are retried
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         float64
	RetryStatuses  []int
}

// DefaultRetryPolicy retries throttling and gateway errors with exponential backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryStatuses: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

func (p RetryPolicy) retryable(statusCode int) bool {
	for _, code := range p.RetryStatuses {
		if statusCode == code {
			return true
		}
	}
	return false
}

// Backoff returns the wait before retry number attempt (0-based). A positive
// retryAfter from the server wins.
func (p RetryPolicy) Backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffFactor, float64(attempt))
	if p.Jitter > 0 {
		backoff += backoff * p.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	return time.Duration(backoff)
}

// ParseRetryAfter extracts the Retry-After duration from an HTTP response
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}

// RequestFunc builds a fresh request for every attempt
type RequestFunc func(ctx context.Context) (*http.Request, error)

// doWithRetry sends the request until it succeeds, fails permanently or the
// policy is exhausted. The last response is returned unread so callers can
// inspect error bodies.
func doWithRetry(ctx context.Context, client *http.Client, policy RetryPolicy, wait func(context.Context) error, build RequestFunc) (*http.Response, int, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := wait(ctx); err != nil {
			return nil, attempt, err
		}
		req, err := build(ctx)
		if err != nil {
			return nil, attempt, err
		}

		resp, err := client.Do(req)
		var retryAfter time.Duration
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode < 300 || !policy.retryable(resp.StatusCode):
			return resp, attempt + 1, nil
		default:
			retryAfter = ParseRetryAfter(resp)
			if attempt >= policy.MaxRetries {
				return resp, attempt + 1, nil
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		}

		if attempt >= policy.MaxRetries {
			return nil, attempt + 1, fmt.Errorf("max retries exceeded: %w", lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, attempt + 1, ctx.Err()
		case <-time.After(policy.Backoff(attempt, retryAfter)):
		}
	}
}
