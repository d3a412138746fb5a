package simulation

import (
	"github.com/aukilabs/contagion/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
)

var (
	simulationTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simulation_ticks_total",
		Help: "The number of completed simulation ticks.",
	})

	simulationTickErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_tick_errors_total",
		Help: "The errors that aborted a simulation tick.",
	}, []string{
		errTypeLabel,
	})

	simulationTickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "simulation_tick_latency",
		Help: "The time to run a simulation tick.",
	})

	simulationTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simulation_time",
		Help: "The simulation time of the last completed tick.",
	})
)

func instrumentTick(r Report) {
	simulationTicks.Inc()
	simulationTickLatency.Observe(r.Duration.Seconds())
	simulationTime.Set(float64(r.Time))
	models.InstrumentPopulation(r.Counts)
}

func instrumentTickError(err error) {
	simulationTickErrors.
		With(prometheus.Labels{
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}
