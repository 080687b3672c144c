package paginate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for position synthesis and publication.
var (
	synthesisRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginate_synthesis_runs_total",
		Help: "Total position synthesis runs by result",
	}, []string{"result"}) // "ok", "failed"

	publicationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paginate_publications_total",
		Help: "Total position updates published to subscribers",
	})

	publicationsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paginate_publications_suppressed_total",
		Help: "Total position updates suppressed because the value was unchanged",
	})

	subscriberDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paginate_subscriber_drops_total",
		Help: "Total updates dropped because a subscriber buffer was full",
	})
)
