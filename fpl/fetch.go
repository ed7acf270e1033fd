package fpl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.StatusCode, e.URL)
}

// Blocked reports whether the status is a blocking-class response. Only these
// statuses trigger proxy fallback; any other non-2xx status is the upstream's
// answer and is returned immediately.
func (e *StatusError) Blocked() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// Attempt records one failed network path inside an ExhaustedError.
type Attempt struct {
	Path   string
	Reason string
}

// ExhaustedError is returned when the direct path and every eligible proxy
// failed. It carries the attempted paths and their failure reasons.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	reasons := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reasons = append(reasons, fmt.Sprintf("%s: %s", a.Path, a.Reason))
	}
	return "all paths exhausted: " + strings.Join(reasons, "; ")
}

// FetcherOption represents the options for the Fetcher.
type FetcherOption func(*Fetcher)

// Fetcher issues single logical GETs against the upstream, transparently
// trying the direct network path and then the configured proxy rotation until
// one succeeds or all are exhausted. Proxy health state is shared across
// concurrent fetches and guarded inside the pool.
type Fetcher struct {
	direct  *http.Client
	pool    *proxyPool
	headers map[string]string
	limiter *rate.Limiter
	logger  *slog.Logger

	attemptTimeout time.Duration
}

// NewFetcher creates a fetcher from the given configuration.
func NewFetcher(cfg Config, options ...FetcherOption) (*Fetcher, error) {
	cfg = cfg.withDefaults()

	f := &Fetcher{
		direct:         &http.Client{Timeout: cfg.AttemptTimeout},
		headers:        cfg.Headers,
		limiter:        rate.NewLimiter(rate.Every(cfg.RatePeriod/time.Duration(cfg.RateLimit)), cfg.RateLimit),
		logger:         slog.Default(),
		attemptTimeout: cfg.AttemptTimeout,
	}

	if cfg.ProxyEnabled && len(cfg.ProxyURLs) > 0 {
		pool, err := newProxyPool(cfg.ProxyURLs, cfg.AttemptTimeout, cfg.FailureThreshold, cfg.Cooldown)
		if err != nil {
			return nil, err
		}
		f.pool = pool
	}

	for _, opt := range options {
		opt(f)
	}

	return f, nil
}

// WithFetcherLogger sets the logger for the fetcher.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger.With(
			slog.String("component", "fetcher"),
		)
	}
}

// ProxyStatus reports the health of every configured proxy. It returns nil
// when proxy fallback is disabled.
func (f *Fetcher) ProxyStatus() []ProxyStatus {
	if f.pool == nil {
		return nil
	}
	return f.pool.status()
}

// Fetch performs one logical GET of the given URL. The direct path is tried
// first; a blocking-class response (403/429) or a connection failure falls
// through to the proxy rotation, while any other non-2xx status fails
// immediately. If the direct path and all eligible proxies fail, the returned
// error is an *ExhaustedError listing every attempted path.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var attempts []Attempt

	body, err := f.attempt(ctx, f.direct, "direct", url)
	if err == nil {
		return body, nil
	}
	if terminal(err) {
		return nil, err
	}
	attempts = append(attempts, Attempt{Path: "direct", Reason: err.Error()})

	if f.pool != nil {
		now := time.Now()
		for _, i := range f.pool.candidates(now) {
			ep := f.pool.endpoints[i]
			path := ep.url.Redacted()

			body, err := f.attempt(ctx, ep.client, path, url)
			if err == nil {
				f.pool.markSuccess(i)
				return body, nil
			}
			if terminal(err) {
				// The proxy path itself worked; the upstream answered with a
				// definitive status through it.
				f.pool.markSuccess(i)
				return nil, err
			}
			f.pool.markFailure(i, time.Now())
			attempts = append(attempts, Attempt{Path: path, Reason: err.Error()})

			if ctx.Err() != nil {
				break
			}
		}
	}

	return nil, &ExhaustedError{Attempts: attempts}
}

// attempt performs one bounded request over the given client and reads the
// full body. It emits one structured log line per attempt.
func (f *Fetcher) attempt(ctx context.Context, client *http.Client, path, url string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(started)
	if err != nil {
		f.logger.Warn("upstream attempt failed",
			slog.String("path", path),
			slog.String("outcome", "connection error"),
			slog.Duration("latency", latency),
			slog.String("err", err.Error()))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	f.logger.Info("upstream attempt",
		slog.String("path", path),
		slog.Int("outcome", resp.StatusCode),
		slog.Duration("latency", latency))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// terminal reports whether the attempt error rules out trying another path.
func terminal(err error) bool {
	var serr *StatusError
	if errors.As(err, &serr) {
		return !serr.Blocked()
	}
	return false
}
