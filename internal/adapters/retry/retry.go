// Package retry provides the bounded rate-limit retry policy shared by every provider adapter.
package retry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/logging"
	"github.com/ewilliams-labs/fetchify/internal/metrics"
)

const (
	DefaultMaxAttempts        = 3
	DefaultBaseBackoff        = 500 * time.Millisecond
	DefaultMaxBackoff         = 30 * time.Second
	DefaultRetryAfterFallback = 5 * time.Second
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Policy bounds how often and how long a request is retried.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// DefaultRetryAfter is waited after a 429 without a usable Retry-After header.
	DefaultRetryAfter time.Duration
	// RetryServerErrors also retries transport errors and 5xx responses with backoff.
	RetryServerErrors bool
	// Sleep waits for d or until ctx is done. Nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the default bounds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       DefaultMaxAttempts,
		BaseBackoff:       DefaultBaseBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		DefaultRetryAfter: DefaultRetryAfterFallback,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = DefaultBaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.DefaultRetryAfter <= 0 {
		p.DefaultRetryAfter = DefaultRetryAfterFallback
	}
	if p.Sleep == nil {
		p.Sleep = SleepWithContext
	}
	return p
}

// Client retries requests through an underlying Doer according to a Policy.
type Client struct {
	doer     Doer
	policy   Policy
	provider string
}

// New wraps doer. provider names the upstream in errors, logs and metrics.
func New(provider string, doer Doer, policy Policy) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{doer: doer, policy: policy.withDefaults(), provider: provider}
}

// Do sends req, retrying on 429 (after Retry-After) and, if enabled, on server errors.
// When every attempt was rate limited the returned error wraps domain.ErrRateLimited.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.GetBody == nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: read request body: %w", c.provider, err)
		}
		_ = req.Body.Close()
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	ctx := req.Context()
	maxAttempts := c.policy.MaxAttempts
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: request canceled: %w", c.provider, err)
		}

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("%s: reset request body: %w", c.provider, err)
			}
			req.Body = body
		}

		resp, err := c.doer.Do(req)
		wait, retry := c.shouldRetry(resp, err, attempt)
		if !retry {
			c.record(resp, err)
			return resp, err
		}

		if attempt >= maxAttempts {
			return nil, c.exhausted(resp, err)
		}

		event := logging.Ctx(ctx).Warn().
			Str("provider", c.provider).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("wait", wait)
		if err != nil {
			event.Err(err).Msg("retrying after transport error")
		} else {
			event.Int("status", resp.StatusCode).Msg("retrying after upstream status")
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		metrics.RecordRetry(c.provider)
		if err := c.policy.Sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%s: %w", c.provider, err)
		}
	}
}

func (c *Client) shouldRetry(resp *http.Response, err error, attempt int) (time.Duration, bool) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, false
		}
		return c.backoff(attempt), c.policy.RetryServerErrors
	}
	if resp == nil {
		return 0, false
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if wait := ParseRetryAfter(resp, time.Now()); wait > 0 {
			return wait, true
		}
		return c.policy.DefaultRetryAfter, true
	}
	if resp.StatusCode >= http.StatusInternalServerError && c.policy.RetryServerErrors {
		return c.backoff(attempt), true
	}
	return 0, false
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.policy.BaseBackoff * time.Duration(1<<(attempt-1))
	if d <= 0 || d > c.policy.MaxBackoff {
		return c.policy.MaxBackoff
	}
	return d
}

func (c *Client) exhausted(resp *http.Response, err error) error {
	attempts := c.policy.MaxAttempts
	if err != nil {
		metrics.RecordProviderRequest(c.provider, "transport")
		return fmt.Errorf("%s: request failed after %d attempts: %w", c.provider, attempts, err)
	}
	status := resp.StatusCode
	_ = resp.Body.Close()
	if status == http.StatusTooManyRequests {
		metrics.RecordProviderRequest(c.provider, "rate_limited")
		return fmt.Errorf("%s: %w after %d attempts", c.provider, domain.ErrRateLimited, attempts)
	}
	metrics.RecordProviderRequest(c.provider, "status")
	return fmt.Errorf("%s: request failed after %d attempts: status %d", c.provider, attempts, status)
}

func (c *Client) record(resp *http.Response, err error) {
	switch {
	case err != nil:
		metrics.RecordProviderRequest(c.provider, "transport")
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.RecordProviderRequest(c.provider, "ok")
	default:
		metrics.RecordProviderRequest(c.provider, "status")
	}
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
// It returns 0 when the header is absent or unusable.
func ParseRetryAfter(resp *http.Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := when.Sub(now); until > 0 {
			return until
		}
	}

	return 0
}

// SleepWithContext waits for delay or until ctx is done.
func SleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
