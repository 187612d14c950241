// Package pypi provides a minimal client for the Python Package Index,
// used to check whether libraries installed on clusters have newer
// releases available. Lookups are cached so that checking many clusters
// does not hammer pypi.org.
package pypi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/cache"
	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/httputil"
)

const defaultTimeout = 10 * time.Second

// ErrNotFound is returned when a package doesn't exist on PyPI.
var ErrNotFound = errors.New("package not found")

// Client fetches package metadata from PyPI.
type Client struct {
	http       *http.Client
	store      cache.Store
	ttl        time.Duration
	baseURL    string
	retryDelay time.Duration
}

// NewClient creates a PyPI client. store may be nil to disable caching.
func NewClient(store cache.Store, ttl time.Duration) *Client {
	return &Client{
		http:       &http.Client{Timeout: defaultTimeout},
		store:      store,
		ttl:        ttl,
		baseURL:    "https://pypi.org/pypi",
		retryDelay: time.Second,
	}
}

// NormalizeName converts a package name to its canonical form per
// PEP 503: lowercase with underscores replaced by hyphens.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

type cachedVersion struct {
	LatestVersion string `json:"latest_version"`
}

type apiResponse struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"info"`
}

// LatestVersion returns the newest released version of pkg.
// Results are cached under "pypi_<name>"; transient PyPI failures
// (5xx, 429, network errors) are retried with backoff.
func (c *Client) LatestVersion(ctx context.Context, pkg string) (string, error) {
	pkg = NormalizeName(pkg)
	key := "pypi_" + pkg

	if c.store != nil {
		if data, ok, _ := c.store.Get(ctx, key); ok {
			var entry cachedVersion
			if err := json.Unmarshal(data, &entry); err == nil && entry.LatestVersion != "" {
				return entry.LatestVersion, nil
			}
		}
	}

	var version string
	err := httputil.Retry(ctx, 3, c.retryDelay, func() error {
		v, err := c.fetch(ctx, pkg)
		version = v
		return err
	})
	if err != nil {
		return "", err
	}

	if c.store != nil {
		if data, err := json.Marshal(cachedVersion{LatestVersion: version}); err == nil {
			_ = c.store.Set(ctx, key, data, c.ttl)
		}
	}
	return version, nil
}

func (c *Client) fetch(ctx context.Context, pkg string) (string, error) {
	url := fmt.Sprintf("%s/%s/json", c.baseURL, pkg)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &httputil.RetryableError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, pkg)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &httputil.RetryableError{Err: fmt.Errorf("pypi: status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("pypi: status %d for %s", resp.StatusCode, pkg)
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode pypi response for %s: %w", pkg, err)
	}
	if data.Info.Version == "" {
		return "", fmt.Errorf("pypi: empty version for %s", pkg)
	}
	return data.Info.Version, nil
}
