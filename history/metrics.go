package history

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
)

var (
	savedReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "history_saved_reports_total",
		Help: "The number of tick reports saved in the history store.",
	})

	droppedReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "history_dropped_reports_total",
		Help: "The number of tick reports dropped because the history buffer was full.",
	})

	historyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "history_errors_total",
		Help: "The errors that occurred while saving tick reports.",
	}, []string{
		errTypeLabel,
	})
)

func instrumentSavedReports(n int) {
	savedReports.Add(float64(n))
}

func instrumentDroppedReport() {
	droppedReports.Inc()
}

func instrumentError(err error) {
	historyErrors.
		With(prometheus.Labels{
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}
