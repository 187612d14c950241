// Package databricks provides an authenticated client for the
// Databricks REST API with retry-with-backoff and a transparent
// read-through response cache.
//
// # Overview
//
// [Client] is the core of the maintenance toolkit. It issues one
// authenticated HTTPS request per logical operation against
// {workspace}/api/{endpoint}, retrying rate limits (HTTP 429) and
// transport failures with exponential backoff. Any other non-2xx
// status surfaces immediately as a [RequestError].
//
// # Resource accessors
//
// Three narrow read operations compose the executor and the cache:
//
//   - [Client.ListClusters]: cached under "clusters_list"
//   - [Client.LibraryStatuses]: always live, never cached
//   - [Client.SparkVersions]: cached under "spark_versions"
//
// The generic [Client.Do] is available for endpoints the accessors
// don't cover; it returns the decoded response as a map and performs
// no schema validation.
//
// # Retry policy
//
// Up to 3 attempts by default with a 2 second base delay; the delay
// before retry k (1-indexed) is base * 2^(k-1), and no sleep occurs
// after the final attempt. Backoff waits honor context cancellation.
//
// # Caching
//
// The cache is an injected [cache.Store]; entries are valid for the
// configured TTL and refreshed on every successful fetch. The client
// does not synchronize store access; run one client per goroutine or
// inject a store that is safe for concurrent use.
package databricks
