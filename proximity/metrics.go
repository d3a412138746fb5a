package proximity

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
)

var (
	proximityQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proximity_queries_total",
		Help: "The number of neighbor queries.",
	})

	proximityCandidates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proximity_candidates_total",
		Help: "The number of candidates returned by the bounding square of neighbor queries.",
	})

	proximityNeighbors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proximity_neighbors_total",
		Help: "The number of candidates kept by the distance filter of neighbor queries.",
	})

	proximityQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proximity_query_errors_total",
		Help: "The errors that occured while querying neighbors.",
	}, []string{
		errTypeLabel,
	})
)

func instrumentQuery(candidates, neighbors int) {
	proximityQueries.Inc()
	proximityCandidates.Add(float64(candidates))
	proximityNeighbors.Add(float64(neighbors))
}

func instrumentQueryError(err error) {
	proximityQueryErrors.
		With(prometheus.Labels{
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}
