// Package clients holds the rate-limited, retrying HTTP client used by the
// remote import sources.
package clients

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient wraps http.Client with a token-bucket limiter and retries
type HTTPClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     RetryPolicy
}

// NewHTTPClient creates a client allowing requestsPerSecond requests with a
// burst of one. A non-positive rate disables limiting.
func NewHTTPClient(requestsPerSecond float64, policy RetryPolicy) *HTTPClient {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
		policy:     policy,
	}
}

// WithHTTPClient replaces the underlying http.Client
func (c *HTTPClient) WithHTTPClient(client *http.Client) *HTTPClient {
	c.httpClient = client
	return c
}

// Do sends the request built by build, honouring the rate limit before every
// attempt. It returns the number of attempts made.
func (c *HTTPClient) Do(ctx context.Context, build RequestFunc) (*http.Response, int, error) {
	return doWithRetry(ctx, c.httpClient, c.policy, c.limiter.Wait, build)
}
