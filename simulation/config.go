package simulation

import (
	"math"

	"github.com/aukilabs/contagion/featureflag"
	"github.com/aukilabs/contagion/models"
	"github.com/aukilabs/contagion/proximity"
	"github.com/aukilabs/contagion/quadtree"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidConfig   = "invalid_config"
	ErrTypeDuplicatePerson = "duplicate_person"
)

// InfectionRates is the probability that a contact with a contagious person
// infects a healthy one, by status of the contagious person.
type InfectionRates struct {
	Infectious float64 `json:"infectious"`
	Sick       float64 `json:"sick"`
	Dead       float64 `json:"dead"`
}

func (r InfectionRates) For(s models.Status) float64 {
	switch s {
	case models.Infectious:
		return r.Infectious
	case models.Sick:
		return r.Sick
	case models.Dead:
		return r.Dead
	default:
		return 0
	}
}

type Config struct {
	PopulationSize  int                     `json:"population_size"`
	InitialInfected int                     `json:"initial_infected"`
	InfluenceRadius float64                 `json:"influence_radius"`
	RoomSize        int                     `json:"room_size"`
	NodeCapacity    int                     `json:"node_capacity"`
	MaxDepth        int                     `json:"max_depth"`
	InfectionRates  InfectionRates          `json:"infection_rates"`
	Timings         models.Timings          `json:"timings"`
	Workers         int                     `json:"workers"`
	FeatureFlags    featureflag.FeatureFlag `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		PopulationSize:  30,
		InitialInfected: 15,
		InfluenceRadius: proximity.DefaultRadius,
		RoomSize:        800,
		NodeCapacity:    quadtree.DefaultNodeCapacity,
		MaxDepth:        quadtree.DefaultMaxDepth,
		InfectionRates: InfectionRates{
			Infectious: 0.01,
			Sick:       0.01,
			Dead:       0.01,
		},
		Timings: models.DefaultTimings(),
		Workers: 1,
	}
}

func (c Config) Validate() error {
	switch {
	case c.PopulationSize < 0:
		return invalidConfig("population size is negative", "population_size", c.PopulationSize)

	case c.InitialInfected < 0 || c.InitialInfected > c.PopulationSize:
		return invalidConfig("initial infected must be between 0 and the population size", "initial_infected", c.InitialInfected)

	case math.IsNaN(c.InfluenceRadius) || c.InfluenceRadius <= 0 || c.InfluenceRadius > proximity.MaxRadius:
		return invalidConfig("influence radius must be positive and bounded", "influence_radius", c.InfluenceRadius)

	case c.RoomSize <= 0:
		return invalidConfig("room size must be positive", "room_size", c.RoomSize)

	case c.Workers <= 0:
		return invalidConfig("workers must be positive", "workers", c.Workers)
	}

	for _, rate := range []float64{c.InfectionRates.Infectious, c.InfectionRates.Sick, c.InfectionRates.Dead, c.Timings.DieRate} {
		if math.IsNaN(rate) || rate < 0 || rate > 1 {
			return invalidConfig("rates must be between 0 and 1", "rate", rate)
		}
	}

	return nil
}

func invalidConfig(msg, key string, value any) error {
	return errors.New(msg).
		WithType(ErrTypeInvalidConfig).
		WithTag(key, value)
}
