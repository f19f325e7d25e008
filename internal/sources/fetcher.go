package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taljindergill78/FSE570/internal/circuitbreaker"
	"github.com/taljindergill78/FSE570/internal/tracing"
)

const (
	// maxPayloadBytes bounds a single upstream response body.
	maxPayloadBytes = 64 << 20

	// BreakerService labels the circuit breakers of every source fetcher.
	BreakerService = "evidence-sources"
)

// Fetcher performs a GET and returns the response body.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, query url.Values, header http.Header) ([]byte, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.URL)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// FetcherConfig tunes an HTTPFetcher.
type FetcherConfig struct {
	Name              string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	Retries           int
	Backoff           time.Duration
	Breaker           circuitbreaker.Settings
}

// HTTPFetcher rate-limits requests, routes them through a circuit breaker
// and retries transient failures with linear backoff.
type HTTPFetcher struct {
	hw        *circuitbreaker.HTTPWrapper
	limiter   *rate.Limiter
	userAgent string
	retries   int
	backoff   time.Duration
	logger    *zap.Logger
}

func NewHTTPFetcher(cfg FetcherConfig, client *http.Client, logger *zap.Logger) *HTTPFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	return &HTTPFetcher{
		hw:        circuitbreaker.NewHTTPWrapper(client, cfg.Name, BreakerService, cfg.Breaker, logger),
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		userAgent: cfg.UserAgent,
		retries:   cfg.Retries,
		backoff:   cfg.Backoff,
		logger:    logger.With(zap.String("fetcher", cfg.Name)),
	}
}

func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, query url.Values, header http.Header) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodGet, u.String())
	defer span.End()

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * f.backoff):
			}
		}
		body, err := f.do(ctx, u, header)
		if err == nil {
			span.SetAttributes(attribute.Int("http.response.body.size", len(body)))
			return body, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		f.logger.Debug("Retrying upstream request", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, lastErr
}

func (f *HTTPFetcher) do(ctx context.Context, u *url.URL, header http.Header) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := f.hw.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: u.Redacted(), StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return true
}
