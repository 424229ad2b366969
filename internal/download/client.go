// Package download fetches raw AW3D30 tiles to local storage with retries,
// rate limiting and crash-safe atomic commits.
package download

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/terracol/terracol/internal/resilience"
)

// ClientOptions configures the HTTP client for the tile source.
type ClientOptions struct {
	UserAgent string
	Timeout   time.Duration
	RateLimit rate.Limit
	RateBurst int

	// Breaker optionally guards the remote host. Nil disables it.
	Breaker *resilience.CircuitBreaker
}

// Client issues rate-limited GETs against the tile source and maps
// responses onto the download error taxonomy. It performs no retries
// itself; the Manager drives retries around whole transfer attempts.
type Client struct {
	hc      *http.Client
	limiter *rate.Limiter
	ua      string
	breaker *resilience.CircuitBreaker
}

// NewClient creates a client for the tile source.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "terracol/1.0"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 32,
		MaxConnsPerHost:     64,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		hc: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		ua:      opts.UserAgent,
		breaker: opts.Breaker,
	}
}

// Get fetches url, honoring the rate limiter and circuit breaker. The
// caller owns the response body on success. Non-2xx statuses are returned
// as errors: 404 and other 4xx as terminal download errors, 5xx and
// throttling responses wrapped as transient so the retry layer picks
// them up.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "download: rate limiter wait")
	}

	if c.breaker == nil {
		return c.get(ctx, url)
	}
	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*http.Response, error) {
		return c.get(ctx, url)
	})
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "download: build request")
	}
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.hc.Do(req)
	if err != nil {
		// Connection-level failures are retryable.
		return nil, resilience.NewTransientError(eris.Wrapf(err, "download: get %s", url), 0)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, &Error{
			Kind:   KindNotFound,
			URL:    url,
			Status: resp.StatusCode,
			Err:    eris.Errorf("download: http %d", resp.StatusCode),
		}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		_ = resp.Body.Close()
		return nil, resilience.NewTransientError(
			eris.Errorf("download: http %d from %s", resp.StatusCode, url),
			resp.StatusCode,
		)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		_ = resp.Body.Close()
		return nil, &Error{
			Kind:   KindRemoteRejected,
			URL:    url,
			Status: resp.StatusCode,
			Err:    eris.Errorf("download: http %d", resp.StatusCode),
		}
	default:
		_ = resp.Body.Close()
		return nil, resilience.NewTransientError(
			eris.Errorf("download: unexpected http %d from %s", resp.StatusCode, url),
			resp.StatusCode,
		)
	}
}
