package measure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for measurement scheduling.
var (
	measurementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginate_measurements_total",
		Help: "Total completed measurements by status",
	}, []string{"status"}) // "ok", "failed"

	measurementsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paginate_measurements_in_flight",
		Help: "Number of measurement tasks currently executing",
	})

	measurementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paginate_measurement_duration_seconds",
		Help:    "Measurement duration in seconds",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
	})

	heightCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paginate_height_cache_hits_total",
		Help: "Total measurement submissions skipped because the outcome was already cached",
	})

	heightCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paginate_height_cache_misses_total",
		Help: "Total measurement submissions that required renderer work",
	})
)
