// Package upstream is the JSON-over-HTTP client shared by the river directory
// and observation service adapters. It maps non-200 responses to
// domain.UpstreamError, timeouts to domain.ErrUpstreamTimeout, and retries
// transient failures with capped exponential backoff.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/streamflow-sync/internal/domain"
	"github.com/couchcryptid/streamflow-sync/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	defaultBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// maxErrorBody bounds how much of a failed response is kept in the error.
	maxErrorBody = 512
)

// Client performs GET requests against one upstream service.
type Client struct {
	service    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the initial retry delay. It doubles per attempt up to 5s.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithClock replaces the clock used for retry delays and request timing.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithMetrics records request outcomes and durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for the named service with a per-request timeout.
func New(service string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		service: service,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		backoff: defaultBackoff,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches fullURL and returns the response body of a 200 response.
func (c *Client) Get(ctx context.Context, fullURL string) ([]byte, error) {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		body, err := c.do(ctx, fullURL)
		if err == nil {
			return body, nil
		}
		if attempt >= c.retries || !retryable(ctx, err) {
			return nil, err
		}

		c.logger.Warn("upstream request failed, retrying",
			"service", c.service,
			"url", fullURL,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if !sleepWithContext(ctx, c.clock, backoff) {
			return nil, err
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (c *Client) do(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &requestError{err: fmt.Errorf("create %s request: %w", c.service, err)}
	}
	req.Header.Set("Accept", "application/json")

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	c.observeDuration(start)
	if err != nil {
		if isTimeout(err) {
			c.observe("timeout")
			return nil, fmt.Errorf("%s request %s: %w: %w", c.service, fullURL, domain.ErrUpstreamTimeout, err)
		}
		c.observe("error")
		return nil, fmt.Errorf("%s request %s: %w", c.service, fullURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.observe("status_error")
		return nil, &domain.UpstreamError{
			Service:    c.service,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			c.observe("timeout")
			return nil, fmt.Errorf("%s read body: %w: %w", c.service, domain.ErrUpstreamTimeout, err)
		}
		c.observe("error")
		return nil, fmt.Errorf("%s read body: %w", c.service, err)
	}
	c.observe("success")
	return body, nil
}

func (c *Client) observe(outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamRequests.WithLabelValues(c.service, outcome).Inc()
}

func (c *Client) observeDuration(start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(c.service).Observe(c.clock.Since(start).Seconds())
}

// requestError marks a request that could not be built. Sending it again
// cannot succeed.
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// retryable reports whether err is worth another attempt: temporary status
// errors, timeouts and transport failures. Cancellation of the caller's
// context always stops retries.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return ue.Temporary()
	}
	var re *requestError
	return !errors.As(err, &re)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// sleepWithContext is retry.SleepWithContext on an injected clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
