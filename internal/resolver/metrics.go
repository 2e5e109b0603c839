package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// lookupsTotal counts resolutions by producing stage and outcome kind.
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "persona",
		Subsystem: "resolver",
		Name:      "lookups_total",
		Help:      "Total query resolutions by stage and result kind",
	}, []string{"stage", "kind"})

	// fetchSeconds measures profile retrieval latency, successful or not.
	fetchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "persona",
		Subsystem: "profile",
		Name:      "fetch_seconds",
		Help:      "Profile document fetch latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

func recordLookup(r Result) {
	lookupsTotal.WithLabelValues(string(r.Stage), string(r.Kind)).Inc()
}
