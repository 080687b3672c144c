// Package metrics provides the centralized Prometheus registry for the
// pagination engine. Metrics are defined in the packages that own the
// behavior (measure, paginate) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the engine.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Measurement Metrics (pkg/measure):
//   - paginate_measurements_total{status} (Counter): Completed measurements by status (ok, failed)
//   - paginate_measurements_in_flight (Gauge): Measurement tasks currently executing
//   - paginate_measurement_duration_seconds (Histogram): Measurement duration
//   - paginate_height_cache_hits_total (Counter): Submissions skipped, outcome already cached
//   - paginate_height_cache_misses_total (Counter): Submissions that required renderer work
//
// Synthesis Metrics (pkg/paginate):
//   - paginate_synthesis_runs_total{result} (Counter): Synthesis runs by result (ok, failed)
//   - paginate_publications_total (Counter): Position updates published to subscribers
//   - paginate_publications_suppressed_total (Counter): Updates suppressed as value-unchanged
//   - paginate_subscriber_drops_total (Counter): Updates dropped on full subscriber buffers
//
// Example Prometheus Queries:
//
//   # Height cache hit rate
//   rate(paginate_height_cache_hits_total[5m]) /
//   (rate(paginate_height_cache_hits_total[5m]) + rate(paginate_height_cache_misses_total[5m]))
//
//   # Measurement failure rate
//   rate(paginate_measurements_total{status="failed"}[5m])
//
//   # P95 measurement latency
//   histogram_quantile(0.95, rate(paginate_measurement_duration_seconds_bucket[5m]))
//
//   # Publication dedup effectiveness
//   rate(paginate_publications_suppressed_total[5m]) /
//   (rate(paginate_publications_total[5m]) + rate(paginate_publications_suppressed_total[5m]))
