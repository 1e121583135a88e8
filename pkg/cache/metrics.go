package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for query cache operations.
var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piapi_cache_hits_total",
		Help: "Total query cache hits by store backend",
	}, []string{"store"})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "piapi_cache_misses_total",
		Help: "Total query cache misses",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "piapi_cache_errors_total",
		Help: "Total query cache backend errors by operation",
	}, []string{"operation"})
)
