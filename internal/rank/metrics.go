package rank

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recalcTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladderd_recalculations_total",
		Help: "Recalculation runs by outcome.",
	}, []string{"result"})

	matchesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladderd_matches_processed_total",
		Help: "Matches folded into ratings across all ladders.",
	})

	recalcDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ladderd_recalculation_seconds",
		Help:    "Wall time of recalculation runs.",
		Buckets: prometheus.DefBuckets,
	})
)
