// Package collector fetches product reviews from the marketplace API and
// stores them as review page files for the mapper.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/resilience"
)

// maxBodyBytes bounds a single API response.
const maxBodyBytes = 16 << 20

// HTTPError is a non-2xx API response.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Status)
}

// ClientConfig configures the API client.
type ClientConfig struct {
	BaseURL             string
	RequestTimeout      time.Duration
	RetryAttempts       int
	RetryInitialDelay   time.Duration
	BreakerThreshold    int
	BreakerResetTimeout time.Duration
}

// Client performs GET requests against the API. Every request goes through
// a per-call timeout, a shared circuit breaker and retry with backoff.
// Concurrent requests for the same URL share one fetch, and responses are
// served from the page cache when one is configured.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	cache   PageCache
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient builds a Client. cache and m may be nil.
func NewClient(cfg ClientConfig, cache PageCache, m *metrics.Metrics) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{},
		timeout: cfg.RequestTimeout,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.RetryAttempts,
			InitialDelay: cfg.RetryInitialDelay,
		},
		cache:   cache,
		metrics: m,
		logger:  slog.Default().With("component", "api-client"),
	}
	c.breaker = resilience.NewCircuitBreaker("review-api", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// URL builds the request URL for resource, an optional subresource and the
// query parameters.
func (c *Client) URL(resource, subresource string, params url.Values) string {
	u := c.baseURL + "/" + strings.Trim(resource, "/")
	if subresource != "" {
		u += "/" + url.PathEscape(subresource)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// GetJSON fetches resource and decodes the body into out. 4xx responses are
// returned as *HTTPError without retrying; 404 also matches ErrNotFound.
func (c *Client) GetJSON(ctx context.Context, resource, subresource string, params url.Values, out any) error {
	u := c.URL(resource, subresource, params)
	body, err := c.get(ctx, resource, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", apperrors.ErrUpstream, u, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, u string) ([]byte, error) {
	if body, ok := c.cacheGet(ctx, u); ok {
		return body, nil
	}
	v, err, _ := c.group.Do(u, func() (any, error) {
		body, err := c.fetch(ctx, endpoint, u)
		if err != nil {
			return nil, err
		}
		c.cacheSet(ctx, u, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) fetch(ctx context.Context, endpoint, u string) ([]byte, error) {
	var body []byte
	err := resilience.Retry(ctx, "GET "+endpoint, c.retry, func() error {
		return c.breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, c.timeout, "GET "+endpoint, func(ctx context.Context) error {
				b, err := c.do(ctx, endpoint, u)
				if err != nil {
					return err
				}
				body = b
				return nil
			})
		})
	})
	if err == nil {
		return body, nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrNotFound, err)
	}
	if ctx.Err() != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", apperrors.ErrUpstream, err)
}

func (c *Client) do(ctx context.Context, endpoint, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, "error")
		return nil, err
	}
	defer resp.Body.Close()
	c.observe(endpoint, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		httpErr := &HTTPError{URL: u, Status: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(httpErr)
		}
		return nil, httpErr
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

func (c *Client) observe(endpoint, status string) {
	if c.metrics != nil {
		c.metrics.APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
	}
}

func (c *Client) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("page cache read failed", "key", key, "error", err)
		c.cacheResult("error")
		return nil, false
	case ok:
		c.cacheResult("hit")
		return body, true
	default:
		c.cacheResult("miss")
		return nil, false
	}
}

func (c *Client) cacheSet(ctx context.Context, key string, body []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, body); err != nil {
		c.logger.Warn("page cache write failed", "key", key, "error", err)
	}
}

func (c *Client) cacheResult(result string) {
	if c.metrics != nil {
		c.metrics.PageCacheTotal.WithLabelValues(result).Inc()
	}
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.GetState()
}

// Ping checks that the API answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}
	resp.Body.Close()
	return nil
}
