// Package fetch retrieves and extracts web page content with bounded retry.
// The retry policy mirrors the pipeline executor's backoff shape but branches
// on HTTP status: server errors and transport failures retry, client errors
// terminate immediately.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/rivalis-ai/rivalis/pkg/models"
	"github.com/rivalis-ai/rivalis/pkg/pipelog"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher fetches URLs with retry and content extraction.
type Fetcher struct {
	client      *http.Client
	log         *pipelog.Logger
	maxAttempts int
	backoffBase float64
	userAgent   string
	sleep       func(time.Duration)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithEventLog attaches the event sink for fetch lifecycle events.
func WithEventLog(log *pipelog.Logger) Option {
	return func(f *Fetcher) { f.log = log }
}

// WithMaxAttempts sets the retry budget, including the first attempt.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) { f.maxAttempts = n }
}

// WithBackoffBase sets the exponential backoff base.
func WithBackoffBase(base float64) Option {
	return func(f *Fetcher) { f.backoffBase = base }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithSleep replaces the sleep function. Used in tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// New creates a Fetcher with a 30 second request timeout, 3 attempts and
// backoff base 2.0.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 3,
		backoffBase: 2.0,
		userAgent:   defaultUserAgent,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves one URL. Failures are reported in the result's Error
// field, never as a returned error, so batch callers can keep going:
//   - 2xx: terminal success, text and title extracted;
//   - 4xx (and redirect exhaustion): terminal, no retry;
//   - 5xx, timeouts, connection failures: retried with backoff;
//   - anything else: terminal, surfaced immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) models.FetchResult {
	result := models.FetchResult{URL: url}

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		status, retryable, done := f.attempt(ctx, url, &result)
		if done {
			return result
		}
		result.StatusCode = status
		if !retryable {
			return result
		}

		if attempt < f.maxAttempts {
			wait := time.Duration(math.Pow(f.backoffBase, float64(attempt-1)) * float64(time.Second))
			f.log.Event(url, "fetch_retry", fmt.Sprintf("attempt %d failed, waiting %s", attempt, wait))
			f.sleep(wait)
		}
	}

	f.log.Warn(url, "fetch_failed", fmt.Sprintf("all %d attempts exhausted: %s", f.maxAttempts, result.Error))
	return result
}

// attempt performs a single request. done means the result is final
// (success or terminal failure); otherwise retryable says whether another
// attempt may help.
func (f *Fetcher) attempt(ctx context.Context, url string, result *models.FetchResult) (status int, retryable, done bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = err.Error()
		return 0, false, true
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result.Error = err.Error()
			return 0, false, true
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			result.Error = "timeout"
			f.log.Warn(url, "fetch_timeout", err.Error())
			return 0, true, false
		}
		// Connection-level failures (refused, reset, DNS) are transient.
		result.Error = "connection_error: " + err.Error()
		f.log.Warn(url, "fetch_connection_error", err.Error())
		return 0, true, false
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			result.Error = err.Error()
			return resp.StatusCode, false, true
		}
		raw := string(body)
		title, text, err := extract(raw)
		if err != nil {
			result.Error = "extract: " + err.Error()
			return resp.StatusCode, false, true
		}
		result.RawContent = raw
		result.Title = title
		result.Text = text
		result.Error = ""
		return resp.StatusCode, false, true

	case resp.StatusCode >= 500:
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		f.log.Warn(url, "fetch_server_error", result.Error)
		return resp.StatusCode, true, false

	default:
		// Client errors and unresolved redirects cannot succeed on retry.
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return resp.StatusCode, false, true
	}
}

// FetchMany fetches URLs sequentially, preserving input order.
func (f *Fetcher) FetchMany(ctx context.Context, urls []string) []models.FetchResult {
	results := make([]models.FetchResult, 0, len(urls))
	for _, u := range urls {
		results = append(results, f.Fetch(ctx, u))
	}
	return results
}
