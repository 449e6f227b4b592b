package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tubeask/internal/logging"
	"tubeask/internal/services"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 4
)

// Policy bounds the retry behaviour of a Gateway.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns the retry policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: defaultRetryAttempts,
		BaseDelay:   defaultRetryBaseDelay,
		MaxDelay:    defaultRetryMaxDelay,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultRetryAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultRetryBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultRetryMaxDelay
	}
	return p
}

// StatusError reports a non-2xx HTTP response. Callers inspect StatusCode to
// map rejections onto their own error taxonomy.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	const maxLen = 200
	if len(body) > maxLen {
		body = body[:maxLen] + "..."
	}
	if body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// Response carries the successful outcome of a gateway request.
type Response struct {
	StatusCode int
	Body       []byte
}

// Builder constructs the request for a single attempt. It is invoked once per
// attempt so request bodies are fresh on every retry.
type Builder func(ctx context.Context) (*http.Request, error)

// Gateway executes HTTP requests with bounded, classified retries. Transient
// failures (timeouts, connection errors, 408/429/5xx) are retried with
// exponential backoff; other failures return immediately.
type Gateway struct {
	httpClient *http.Client
	logger     *slog.Logger
	policy     Policy
	sleeper    func(time.Duration)
}

// Option customizes the gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPolicy overrides the default retry policy.
func WithPolicy(policy Policy) Option {
	return func(g *Gateway) {
		g.policy = policy.normalized()
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(g *Gateway) {
		g.sleeper = sleeper
	}
}

// New constructs a gateway with the supplied options.
func New(opts ...Option) *Gateway {
	gw := &Gateway{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		policy:     DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(gw)
	}
	if gw.httpClient == nil {
		gw.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if gw.logger == nil {
		gw.logger = logging.NewNop()
	}
	return gw
}

// Do runs the request built by build, retrying transient failures until the
// policy's attempt budget is spent. A budget spent on transient failures
// surfaces as a network exhausted error wrapping the last attempt's failure;
// non-transient failures return unwrapped so callers can classify them.
func (g *Gateway) Do(ctx context.Context, op string, build Builder) (*Response, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%s: nil context", op)
	}
	policy := g.policy.normalized()
	attempts := policy.MaxAttempts

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := g.doOnce(ctx, op, build)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		delay, transient := g.retryDelay(ctx, err, attempt)
		if !transient {
			return nil, err
		}
		if attempt == attempts {
			break
		}
		logging.WithContext(ctx, g.logger).Debug("retrying request",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err))
		if err := g.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	detail := fmt.Sprintf("gave up after %d attempts", attempts)
	return nil, services.Wrap(services.ErrNetworkExhausted, "", op, detail, lastErr)
}

func (g *Gateway) doOnce(ctx context.Context, op string, build Builder) (*Response, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: http error: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// retryDelay reports whether err is transient and, if so, how long to wait
// before the next attempt.
func (g *Gateway) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return g.capDelay(statusErr.RetryAfter), true
			}
			return g.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return g.backoffDelay(attempt), true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// url.Error often wraps net.Error types, but keep a conservative retry
		// for timeouts surfaced only at this level.
		if urlErr.Timeout() {
			return g.backoffDelay(attempt), true
		}
		var opErr *net.OpError
		if errors.As(urlErr, &opErr) {
			return g.backoffDelay(attempt), true
		}
	}

	return 0, false
}

func (g *Gateway) backoffDelay(attempt int) time.Duration {
	policy := g.policy.normalized()
	base := policy.BaseDelay
	maxDelay := policy.MaxDelay

	retryCount := attempt // attempt is 1-based, delay is for the next attempt.
	if retryCount <= 0 {
		retryCount = 1
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < retryCount; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return g.capDelay(delay)
}

func (g *Gateway) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := g.policy.normalized().MaxDelay
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (g *Gateway) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if g.sleeper != nil {
		g.sleeper(delay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
