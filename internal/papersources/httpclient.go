package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
	"github.com/paperbirthdays/ingestion-service/internal/observability"
)

// HTTPClientConfig configures the shared HTTP client for a source.
type HTTPClientConfig struct {
	// Timeout is the per-request timeout. Timeouts are treated identically
	// to connection errors for retry purposes.
	Timeout time.Duration

	// Limiter is the shared per-source rate budget. Required when more than
	// one worker talks to the same source; if nil a limiter is built from
	// RateLimit and BurstSize.
	Limiter *RateLimiter

	// RateLimit is the sustained requests per second (used only when
	// Limiter is nil).
	RateLimit float64

	// BurstSize is the burst for the built-in limiter.
	BurstSize int

	// MaxRetries bounds retry attempts for connection errors, timeouts and
	// 5xx responses.
	MaxRetries int

	// RetryDelay is the base delay for transient-error retries; the actual
	// delay grows linearly with the attempt number.
	RetryDelay time.Duration

	// RateLimitCooldown is the fixed sleep applied on a 429 response when
	// the server sends no Retry-After header.
	RateLimitCooldown time.Duration

	// MaxRateLimitWaits bounds how many consecutive 429 cooldowns are
	// tolerated for one request before surfacing failure. Rate-limit waits
	// do not consume transient-error attempts.
	MaxRateLimitWaits int

	// UserAgent is sent with every request.
	UserAgent string

	// APIKey is an optional credential raising the source's rate limits.
	APIKey string

	// APIKeyHeader is the header name the key is sent under.
	APIKeyHeader string

	// Metrics records rate-limit cooldowns when set; nil disables the
	// recording.
	Metrics *observability.Metrics
}

// HTTPClient wraps http.Client with a shared rate budget and the retry policy
// every source call path uses: bounded linear backoff for connection errors,
// timeouts and 5xx, and fixed-cooldown waits for 429. Safe for concurrent
// use; all workers against one source share a single HTTPClient so the
// source's published limit is a global budget, not a per-worker one.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates an HTTP client with the given retry policy.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 1
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.RateLimitCooldown == 0 {
		cfg.RateLimitCooldown = 60 * time.Second
	}
	if cfg.MaxRateLimitWaits == 0 {
		cfg.MaxRateLimitWaits = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "PaperBirthdays-Ingestion/1.0"
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(cfg.RateLimit, cfg.BurstSize)
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: cfg.Limiter,
		config:      cfg,
	}
}

// Do executes a request under the shared rate budget with retries.
//
// The request body is not preserved across retries; callers must provide
// requests with GetBody set if the body needs to be resent.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	var lastErr error
	rateLimitWaits := 0

	for attempt := 0; attempt <= c.config.MaxRetries; {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// Only caller cancellation short-circuits. An expired
			// http.Client.Timeout also reports context.DeadlineExceeded, so
			// the request's own context decides; a per-request timeout falls
			// through and is retried like any connection error.
			if req.Context().Err() != nil {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			attempt++
			if attempt > c.config.MaxRetries {
				return nil, lastErr
			}
			if err := c.sleep(req.Context(), c.backoff(attempt)); err != nil {
				return nil, err
			}
			if err := c.resetRequestBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			cooldown := c.cooldown(resp)
			drainAndClose(resp)
			rateLimitWaits++
			if c.config.Metrics != nil {
				c.config.Metrics.RecordSourceRateLimited()
			}
			if rateLimitWaits > c.config.MaxRateLimitWaits {
				return nil, domain.NewRateLimitError(req.URL.Host, cooldown)
			}
			// A 429 does not consume a transient-error attempt; the same
			// page is retried after the cooldown.
			if err := c.sleep(req.Context(), cooldown); err != nil {
				return nil, err
			}
			if err := c.resetRequestBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}

		case resp.StatusCode >= 500:
			drainAndClose(resp)
			lastErr = fmt.Errorf("server returned status %d: %w", resp.StatusCode, domain.ErrServiceUnavailable)
			attempt++
			if attempt > c.config.MaxRetries {
				return nil, fmt.Errorf("max retries exhausted after %d attempts: %w", attempt, lastErr)
			}
			if err := c.sleep(req.Context(), c.backoff(attempt)); err != nil {
				return nil, err
			}
			if err := c.resetRequestBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}

		default:
			// Success or a non-retryable status; the caller classifies it.
			return resp, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// backoff returns the delay before the given retry attempt (1-based).
func (c *HTTPClient) backoff(attempt int) time.Duration {
	return time.Duration(attempt) * c.config.RetryDelay
}

// cooldown determines the 429 wait, honoring Retry-After when present.
func (c *HTTPClient) cooldown(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RateLimitCooldown
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return c.config.RateLimitCooldown
}

// sleep waits for the given duration, respecting context cancellation.
func (c *HTTPClient) sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetRequestBody restores the request body for a retry when possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

// drainAndClose frees a response's resources before a retry.
func drainAndClose(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
