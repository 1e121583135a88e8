// Package metrics provides the centralized Prometheus registry reference
// for the Prime Infrastructure client. Metrics are defined in their
// respective packages (piapi, cache) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/piapi):
//   - piapi_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - piapi_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - piapi_errors_total{class} (Counter): Errors by class (auth, request, server,
//     server_transient, not_found, no_result, resource_not_found, cancelled, network)
//   - piapi_cache_served_total (Counter): Data queries answered from the fingerprint cache
//
// Cache Metrics (pkg/cache):
//   - piapi_cache_hits_total{store} (Counter): Fingerprint cache hits by backend
//   - piapi_cache_misses_total (Counter): Fingerprint cache misses
//   - piapi_cache_errors_total{operation} (Counter): Cache backend errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(piapi_cache_hits_total[5m])) /
//   (sum(rate(piapi_cache_hits_total[5m])) + sum(rate(piapi_cache_misses_total[5m])))
//
//   # Rate-Limit Pressure (503s hint server-side throttling)
//   rate(piapi_requests_total{status="503"}[5m])
//
//   # Request Error Rate
//   rate(piapi_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(piapi_request_duration_seconds_bucket[5m]))
