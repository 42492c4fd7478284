// Package request performs HTTP GETs against remote map services with
// response caching, retries and per-host tracking.
package request

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"multiselect/pkg/cache"
	"multiselect/pkg/tracker"
	"multiselect/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("multiselect/%s", version.Version)

// Options tune the client. Zero values select the defaults.
type Options struct {
	Retries int           // attempts per request, default 3
	Timeout time.Duration // per request, 0 means none
	Backoff time.Duration // base retry delay, default 500ms
	Logger  *slog.Logger  // per-request log, default slog.Default()
}

// Client handles HTTP requests with caching and tracking.
type Client struct {
	httpClient *http.Client
	cache      cache.Cacher
	tracker    *tracker.Tracker
	retries    int
	backoff    time.Duration
	log        *slog.Logger
}

// New creates a new Client. c and t may be nil.
func New(c cache.Cacher, t *tracker.Tracker, opts Options) *Client {
	if c == nil {
		c = cache.Nop{}
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      c,
		tracker:    t,
		retries:    opts.Retries,
		backoff:    opts.Backoff,
		log:        opts.Logger,
	}
}

// Get performs a GET request, answering from the cache when cacheKey is set
// and a fresh entry exists.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil, cacheKey)
}

// GetWithHeaders performs a GET request with custom headers and optional caching.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string, cacheKey string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	host := parsedURL.Host

	if cacheKey != "" {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.TrackCacheHit(host)
			slog.Debug("Cache Hit", "host", host, "key", cacheKey)
			return val, nil
		}
		c.tracker.TrackCacheMiss(host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	ua := false
	for k, v := range headers {
		req.Header.Set(k, v)
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			ua = true
		}
	}
	if !ua {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	c.tracker.TrackRequest(host)
	start := time.Now()
	body, err := c.executeWithBackoff(req)
	if err != nil {
		c.tracker.TrackFailure(host)
		c.log.Warn("Request Failed", "host", host, "path", parsedURL.Path, "duration", time.Since(start), "error", err)
		return nil, err
	}
	c.log.Info("Request Processed", "host", host, "path", parsedURL.Path, "bytes", len(body), "duration", time.Since(start))

	if cacheKey != "" {
		if err := c.cache.SetCache(ctx, cacheKey, body); err != nil {
			slog.Error("Failed to cache response", "url", u, "error", err)
		}
	}
	return body, nil
}

// executeWithBackoff attempts the request with exponential backoff on retryable errors.
func (c *Client) executeWithBackoff(req *http.Request) ([]byte, error) {
	for attempt := 0; attempt < c.retries; attempt++ {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			slog.Warn("Request failed, retrying", "url", req.URL, "attempt", attempt+1, "error", err)
			if err := c.sleep(req.Context(), attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			slog.Warn("Server busy, backing off", "status", resp.StatusCode, "url", req.URL, "attempt", attempt+1)
			if err := c.sleep(req.Context(), attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %s", req.URL)
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	d := time.Duration(math.Pow(2, float64(attempt))) * c.backoff
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusError is returned for non-retryable HTTP error statuses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d", e.Code)
}
