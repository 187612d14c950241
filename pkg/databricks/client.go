package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/cache"
	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/httputil"
	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/observability"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultAttempts  = 3
	defaultBaseDelay = 2 * time.Second
	defaultCacheTTL  = time.Hour
)

// Cache keys used by the resource accessors.
const (
	cacheKeyClusters      = "clusters_list"
	cacheKeySparkVersions = "spark_versions"
)

// Client makes authenticated requests to the Databricks REST API.
//
// A Client is configured once at construction and is immutable for its
// lifetime: workspace URL, bearer token, and derived headers never
// change. Responses of slowly changing endpoints are served through the
// injected [cache.Store] with the configured TTL.
//
// The Client itself issues requests synchronously and holds no mutable
// state beyond the store; it is safe for concurrent use only if the
// injected store is.
type Client struct {
	baseURL string
	headers map[string]string
	http    *http.Client
	store   cache.Store
	ttl     time.Duration

	logger     *log.Logger
	httpHooks  observability.HTTPHooks
	cacheHooks observability.CacheHooks

	attempts  int
	baseDelay time.Duration
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger sets the logger used for retry warnings and terminal
// failures. The default discards all output.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying HTTP client.
// Useful for tests and custom transports.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCacheTTL sets the time-to-live for cached responses.
// The default is one hour.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithRetry sets the default attempt count and base backoff delay for
// all requests. Per-request overrides are available via [WithAttempts]
// and [WithBaseDelay].
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = baseDelay
	}
}

// WithHTTPHooks injects observability hooks for request execution.
func WithHTTPHooks(h observability.HTTPHooks) Option {
	return func(c *Client) {
		if h != nil {
			c.httpHooks = h
		}
	}
}

// WithCacheHooks injects observability hooks for cache operations.
func WithCacheHooks(h observability.CacheHooks) Option {
	return func(c *Client) {
		if h != nil {
			c.cacheHooks = h
		}
	}
}

// NewClient creates a client for the given workspace.
//
// workspaceURL is the workspace base address (a trailing slash is
// stripped); token is a personal access token sent as a bearer
// credential on every request. store may be nil to disable caching
// entirely.
func NewClient(workspaceURL, token string, store cache.Store, opts ...Option) (*Client, error) {
	if workspaceURL == "" {
		return nil, errors.New("workspace URL is required")
	}
	if token == "" {
		return nil, errors.New("access token is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(workspaceURL, "/"),
		headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		},
		http:       &http.Client{Timeout: defaultTimeout},
		store:      store,
		ttl:        defaultCacheTTL,
		logger:     log.New(io.Discard),
		httpHooks:  observability.NoopHTTPHooks{},
		cacheHooks: observability.NoopCacheHooks{},
		attempts:   defaultAttempts,
		baseDelay:  defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WorkspaceURL returns the normalized workspace base address.
func (c *Client) WorkspaceURL() string { return c.baseURL }

// RequestOption overrides retry behavior for a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	attempts  int
	baseDelay time.Duration
}

// WithAttempts overrides the maximum attempt count for one request.
func WithAttempts(n int) RequestOption {
	return func(o *requestOptions) { o.attempts = n }
}

// WithBaseDelay overrides the base backoff delay for one request.
// The delay before retry k (1-indexed) is baseDelay * 2^(k-1).
func WithBaseDelay(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.baseDelay = d }
}

// Do performs an authenticated API request and decodes the JSON
// response into a generic map. An empty 2xx body yields an empty map.
//
// method must be one of GET, POST, PUT, DELETE (case-insensitive);
// anything else fails immediately with [ErrInvalidMethod] and no
// network call. The request URL is {workspace}/api/{endpoint}. body is
// JSON-encoded for POST and PUT and ignored for GET and DELETE.
//
// HTTP 429 responses and transport failures are retried with
// exponential backoff; any other non-2xx status is surfaced immediately
// as a [RequestError] tagged with label.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, label string, opts ...RequestOption) (map[string]any, error) {
	result := map[string]any{}
	if err := c.do(ctx, method, endpoint, body, label, &result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// do is the typed core of Do: it runs the retry loop and decodes the
// response into v. Accessors use it directly to get typed responses.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, label string, v any, opts ...RequestOption) error {
	ro := requestOptions{attempts: c.attempts, baseDelay: c.baseDelay}
	for _, opt := range opts {
		opt(&ro)
	}

	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}

	url := c.baseURL + "/api/" + endpoint

	var payload []byte
	if body != nil && (method == http.MethodPost || method == http.MethodPut) {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request body: %w", endpoint, err)
		}
		payload = data
	}

	attempt := 0
	notify := func(n int, delay time.Duration, err error) {
		c.logger.Warn("request failed, retrying",
			"endpoint", endpoint, "attempt", n, "delay", delay, "err", err)
		c.httpHooks.OnRetry(ctx, method, endpoint, n, delay, err)
	}

	err := httputil.RetryNotify(ctx, ro.attempts, ro.baseDelay, func() error {
		attempt++
		return c.attempt(ctx, method, url, endpoint, payload, label, attempt, v)
	}, notify)
	if err == nil {
		return nil
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		// Retryable failure that exhausted all attempts, or a cancelled
		// backoff wait.
		code := CodeRequestFailed
		var rateErr *RateLimitedError
		switch {
		case errors.As(err, &rateErr):
			code = CodeRateLimited
		case errors.Is(err, ErrNetwork):
			code = CodeNetworkError
		}
		reqErr = &RequestError{Code: code, Label: label, Endpoint: endpoint, Cause: err}
	}
	c.logger.Error(label, "endpoint", endpoint, "attempts", attempt, "err", err)
	c.httpHooks.OnError(ctx, method, endpoint, reqErr)
	return reqErr
}

// attempt issues one HTTP request and classifies the outcome:
// nil on decoded 2xx, RetryableError on 429 or transport failure,
// RequestError on any other non-2xx status.
func (c *Client) attempt(ctx context.Context, method, url, endpoint string, payload []byte, label string, attempt int, v any) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return &RequestError{Code: CodeRequestFailed, Label: label, Endpoint: endpoint, Cause: err}
	}
	for k, val := range c.headers {
		req.Header.Set(k, val)
	}

	c.httpHooks.OnRequest(ctx, method, endpoint, attempt)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()

	c.httpHooks.OnResponse(ctx, method, endpoint, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &httputil.RetryableError{Err: &RateLimitedError{RetryAfter: retryAfter}}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{
			Code:     CodeRequestFailed,
			Label:    label,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &httputil.RetryableError{Err: fmt.Errorf("%w: read response: %v", ErrNetwork, err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if m, ok := v.(*map[string]any); ok {
			*m = map[string]any{}
		}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &RequestError{Code: CodeDecodeError, Label: label, Endpoint: endpoint, Cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// cached serves v from the store when a fresh entry exists, and
// otherwise runs fetch and writes the result back under key with the
// client's TTL. Cache write failures are deliberately not surfaced; the
// fetched value is still returned.
func (c *Client) cached(ctx context.Context, key string, v any, fetch func() error) error {
	if c.store != nil {
		if data, ok, _ := c.store.Get(ctx, key); ok {
			if err := json.Unmarshal(data, v); err == nil {
				c.cacheHooks.OnHit(ctx, key)
				c.logger.Debug("cache hit", "key", key)
				return nil
			}
		}
		c.cacheHooks.OnMiss(ctx, key)
		c.logger.Debug("cache miss", "key", key)
	}

	if err := fetch(); err != nil {
		return err
	}

	if c.store != nil {
		if data, err := json.Marshal(v); err == nil {
			if err := c.store.Set(ctx, key, data, c.ttl); err == nil {
				c.cacheHooks.OnSet(ctx, key, len(data))
			}
		}
	}
	return nil
}
