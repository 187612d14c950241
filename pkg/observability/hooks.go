// Package observability provides hooks for metrics and tracing.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Hooks are injected
// into the API client at construction time, so tests can assert on
// emitted events and deployments can plug in Prometheus, OpenTelemetry,
// or plain logging without the core knowing about any of them.
//
// # Usage
//
// Implement the hook interfaces and pass them to the client:
//
//	client, err := databricks.NewClient(url, token, store,
//	    databricks.WithHTTPHooks(&myHTTPHooks{}),
//	    databricks.WithCacheHooks(&myCacheHooks{}),
//	)
//
// The no-op implementations are the defaults; a nil check is never
// required at call sites.
package observability

import (
	"context"
	"time"
)

// HTTPHooks receives events from API client request execution.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP attempt.
	OnRequest(ctx context.Context, method, endpoint string, attempt int)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, endpoint string, statusCode int, duration time.Duration)

	// OnRetry records a scheduled retry after a rate limit or transport failure.
	OnRetry(ctx context.Context, method, endpoint string, attempt int, delay time.Duration, err error)

	// OnError records a terminal request failure.
	OnError(ctx context.Context, method, endpoint string, err error)
}

// CacheHooks receives events from read-through cache operations.
type CacheHooks interface {
	// OnHit records a cache hit.
	OnHit(ctx context.Context, key string)

	// OnMiss records a cache miss.
	OnMiss(ctx context.Context, key string)

	// OnSet records a cache write.
	OnSet(ctx context.Context, key string, size int)
}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, int)                     {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration)     {}
func (NoopHTTPHooks) OnRetry(context.Context, string, string, int, time.Duration, error) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, error)                     {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnHit(context.Context, string)      {}
func (NoopCacheHooks) OnMiss(context.Context, string)     {}
func (NoopCacheHooks) OnSet(context.Context, string, int) {}
