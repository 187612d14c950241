package databricks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sunny-sharma-datalytyx/databricks-maintenance/pkg/cache"
)

// recorder captures observability events for assertions.
type recorder struct {
	mu      sync.Mutex
	retries []retryEvent
	hits    []string
	misses  []string
	sets    []string
}

type retryEvent struct {
	attempt int
	delay   time.Duration
}

func (r *recorder) OnRequest(context.Context, string, string, int)                 {}
func (r *recorder) OnResponse(context.Context, string, string, int, time.Duration) {}
func (r *recorder) OnError(context.Context, string, string, error)                 {}

func (r *recorder) OnRetry(_ context.Context, _, _ string, attempt int, delay time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, retryEvent{attempt: attempt, delay: delay})
}

func (r *recorder) OnHit(_ context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits = append(r.hits, key)
}

func (r *recorder) OnMiss(_ context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses = append(r.misses, key)
}

func (r *recorder) OnSet(_ context.Context, key string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, key)
}

func testClient(t *testing.T, serverURL string, store cache.Store, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	c, err := NewClient(serverURL, "test-token", store, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient("", "tok", nil); err == nil {
		t.Error("expected error for empty workspace URL")
	}
	if _, err := NewClient("https://example.cloud.databricks.com", "", nil); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestNewClient_NormalizesWorkspaceURL(t *testing.T) {
	c, err := NewClient("https://example.cloud.databricks.com/", "tok", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.WorkspaceURL(); got != "https://example.cloud.databricks.com" {
		t.Errorf("WorkspaceURL() = %q, want trailing slash stripped", got)
	}
}

func TestClient_Do_SendsAuthHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if r.URL.Path != "/api/2.0/clusters/list" {
			t.Errorf("path = %q, want /api/2.0/clusters/list", r.URL.Path)
		}
		w.Write([]byte(`{"clusters":[]}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	if _, err := c.Do(context.Background(), "GET", "2.0/clusters/list", nil, "list failed"); err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
}

func TestClient_Do_EmptyBodyYieldsEmptyMap(t *testing.T) {
	for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			c := testClient(t, server.URL, nil)
			got, err := c.Do(context.Background(), method, "2.0/test", nil, "failed")
			if err != nil {
				t.Fatalf("Do(%s) failed: %v", method, err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("Do(%s) = %v, want empty map", method, got)
			}
		})
	}
}

func TestClient_Do_DecodesJSONUnchanged(t *testing.T) {
	payload := map[string]any{"versions": []any{map[string]any{"key": "13.3.x", "name": "13.3 LTS"}}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	got, err := c.Do(context.Background(), "get", "2.0/clusters/spark-versions", nil, "failed")
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	want, _ := json.Marshal(payload)
	gotJSON, _ := json.Marshal(got)
	if string(gotJSON) != string(want) {
		t.Errorf("Do() = %s, want %s", gotJSON, want)
	}
}

func TestClient_Do_PostSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["cluster_id"] != "abc-123" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	_, err := c.Do(context.Background(), "POST", "2.0/clusters/start", map[string]string{"cluster_id": "abc-123"}, "start failed")
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
}

func TestClient_Do_InvalidMethodNoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	_, err := c.Do(context.Background(), "PATCH", "2.0/clusters/edit", nil, "edit failed")
	if !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("Do(PATCH) = %v, want ErrInvalidMethod", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server received %d calls, want 0", calls.Load())
	}
}

func TestClient_Do_RateLimitExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	rec := &recorder{}
	base := time.Millisecond
	c := testClient(t, server.URL, nil, WithRetry(3, base), WithHTTPHooks(rec))

	_, err := c.Do(context.Background(), "GET", "2.0/clusters/list", nil, "list failed")

	if calls.Load() != 3 {
		t.Errorf("server received %d calls, want 3", calls.Load())
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Do() = %v, want RequestError", err)
	}
	if reqErr.Label != "list failed" {
		t.Errorf("Label = %q", reqErr.Label)
	}
	var rateErr *RateLimitedError
	if !errors.As(err, &rateErr) {
		t.Errorf("cause chain should contain RateLimitedError, got %v", err)
	}

	// Exactly two backoff sleeps (base, then base*2) and none after the
	// final attempt.
	if len(rec.retries) != 2 {
		t.Fatalf("retries = %d, want 2", len(rec.retries))
	}
	if rec.retries[0].delay != base || rec.retries[1].delay != 2*base {
		t.Errorf("delays = %v/%v, want %v/%v",
			rec.retries[0].delay, rec.retries[1].delay, base, 2*base)
	}
}

func TestClient_Do_RateLimitThenSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"clusters":[{"cluster_id":"a"}]}`))
	}))
	defer server.Close()

	rec := &recorder{}
	c := testClient(t, server.URL, nil, WithRetry(3, time.Millisecond), WithHTTPHooks(rec))

	got, err := c.Do(context.Background(), "GET", "2.0/clusters/list", nil, "list failed")
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server received %d calls, want 2", calls.Load())
	}
	if len(rec.retries) != 1 {
		t.Errorf("retries = %d, want 1", len(rec.retries))
	}
	if _, ok := got["clusters"]; !ok {
		t.Errorf("Do() = %v, want decoded clusters", got)
	}
}

func TestClient_Do_NotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error_code":"RESOURCE_DOES_NOT_EXIST"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	_, err := c.Do(context.Background(), "GET", "2.0/clusters/get", nil, "get failed")

	if calls.Load() != 1 {
		t.Errorf("server received %d calls, want 1 (404 must not be retried)", calls.Load())
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Do() = %v, want RequestError", err)
	}
	if reqErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", reqErr.Status)
	}
}

func TestClient_Do_TransportErrorRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // all requests now fail at the transport level

	rec := &recorder{}
	c := testClient(t, server.URL, nil, WithRetry(2, time.Millisecond), WithHTTPHooks(rec))

	_, err := c.Do(context.Background(), "GET", "2.0/clusters/list", nil, "list failed")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Do() = %v, want ErrNetwork in chain", err)
	}
	if len(rec.retries) != 1 {
		t.Errorf("retries = %d, want 1 for 2 attempts", len(rec.retries))
	}
}

func TestClient_Do_MalformedJSONNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"clusters": [`))
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	_, err := c.Do(context.Background(), "GET", "2.0/clusters/list", nil, "list failed")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if calls.Load() != 1 {
		t.Errorf("server received %d calls, want 1 (decode failures are not retried)", calls.Load())
	}
}

func TestClient_ListClusters_ReadThroughCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"clusters":[{"cluster_id":"c1","cluster_name":"prod-etl","spark_version":"10.4.x-scala2.12"}]}`))
	}))
	defer server.Close()

	rec := &recorder{}
	c := testClient(t, server.URL, cache.NewMemoryStore(), WithCacheHooks(rec))
	ctx := context.Background()

	first, err := c.ListClusters(ctx)
	if err != nil {
		t.Fatalf("ListClusters() failed: %v", err)
	}
	second, err := c.ListClusters(ctx)
	if err != nil {
		t.Fatalf("second ListClusters() failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("server received %d calls, want 1 (second read must hit cache)", calls.Load())
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Errorf("cached read differs: %v vs %v", first, second)
	}
	if len(rec.misses) != 1 || len(rec.hits) != 1 || len(rec.sets) != 1 {
		t.Errorf("cache events = %d misses, %d hits, %d sets; want 1/1/1",
			len(rec.misses), len(rec.hits), len(rec.sets))
	}
}

func TestClient_ListClusters_RefetchesAfterExpiry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"clusters":[]}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL, cache.NewMemoryStore(), WithCacheTTL(20*time.Millisecond))
	ctx := context.Background()

	if _, err := c.ListClusters(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := c.ListClusters(ctx); err != nil {
		t.Fatal(err)
	}

	if calls.Load() != 2 {
		t.Errorf("server received %d calls, want 2 after TTL expiry", calls.Load())
	}
}

func TestClient_ListClusters_MissingFieldYieldsEmptySlice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	clusters, err := c.ListClusters(context.Background())
	if err != nil {
		t.Fatalf("ListClusters() failed: %v", err)
	}
	if clusters == nil || len(clusters) != 0 {
		t.Errorf("ListClusters() = %v, want empty slice", clusters)
	}
}

func TestClient_LibraryStatuses_NeverCached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.URL.Query().Get("cluster_id"); got != "c1" {
			t.Errorf("cluster_id = %q", got)
		}
		w.Write([]byte(`{"cluster_id":"c1","library_statuses":[{"status":"INSTALLED","library":{"pypi":{"package":"requests==2.27.0"}}}]}`))
	}))
	defer server.Close()

	store := cache.NewMemoryStore()
	rec := &recorder{}
	c := testClient(t, server.URL, store, WithCacheHooks(rec))
	ctx := context.Background()

	for range 2 {
		status, err := c.LibraryStatuses(ctx, "c1")
		if err != nil {
			t.Fatalf("LibraryStatuses() failed: %v", err)
		}
		if len(status.LibraryStatuses) != 1 {
			t.Errorf("got %d statuses, want 1", len(status.LibraryStatuses))
		}
	}

	if calls.Load() != 2 {
		t.Errorf("server received %d calls, want 2 (library status is never cached)", calls.Load())
	}
	if len(rec.hits)+len(rec.misses)+len(rec.sets) != 0 {
		t.Error("LibraryStatuses must not touch the cache")
	}
}

func TestClient_SparkVersions_CachesFullResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"versions":[{"key":"13.3.x-scala2.12","name":"13.3 LTS (includes Apache Spark 3.4.1, Scala 2.12)"}]}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL, cache.NewMemoryStore())
	ctx := context.Background()

	first, err := c.SparkVersions(ctx)
	if err != nil {
		t.Fatalf("SparkVersions() failed: %v", err)
	}
	second, err := c.SparkVersions(ctx)
	if err != nil {
		t.Fatalf("second SparkVersions() failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("server received %d calls, want 1", calls.Load())
	}
	if len(first.Versions) != 1 || len(second.Versions) != 1 || first.Versions[0] != second.Versions[0] {
		t.Errorf("cached read differs: %v vs %v", first, second)
	}
}

func TestClient_Do_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil, WithRetry(3, time.Minute))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, "GET", "2.0/clusters/list", nil, "list failed")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() = %v, want DeadlineExceeded in chain", err)
	}
}
