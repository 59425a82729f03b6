// Package observability provides Prometheus metrics for the application.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "murmur_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ThreadFetches counts thread subtree fetches by cache outcome.
	ThreadFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_thread_fetches_total",
		Help: "Total number of thread fetches by source",
	}, []string{"source"})

	// VotesApplied counts vote writes by direction.
	VotesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_votes_applied_total",
		Help: "Total number of votes applied by direction",
	}, []string{"direction"})

	// PostMutations counts create/edit/delete operations on posts.
	PostMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_post_mutations_total",
		Help: "Total number of post mutations by kind",
	}, []string{"kind"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
