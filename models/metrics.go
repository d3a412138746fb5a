package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusLabel = "status"
)

var (
	populationCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "population",
		Help: "The number of persons in the room by status.",
	}, []string{statusLabel})

	infectionCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "infections_total",
		Help: "The total number of infections.",
	})

	deathCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deaths_total",
		Help: "The total number of deaths.",
	})
)

// InstrumentPopulation sets the population gauge for every status.
func InstrumentPopulation(counts Counts) {
	for _, s := range Statuses {
		populationCount.
			With(prometheus.Labels{statusLabel: s.String()}).
			Set(float64(counts.Get(s)))
	}
}

func instrumentInfection() {
	infectionCountTotal.Inc()
}

func instrumentDeath() {
	deathCountTotal.Inc()
}
