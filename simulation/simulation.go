package simulation

import (
	"context"
	"sort"
	"time"

	"github.com/aukilabs/contagion/featureflag"
	"github.com/aukilabs/contagion/models"
	"github.com/aukilabs/contagion/proximity"
	"github.com/aukilabs/contagion/quadtree"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/sync/errgroup"
)

// Report describes what happened during a tick.
type Report struct {
	// The simulation time the tick ran at.
	Time uint32 `json:"time" msgpack:"time"`

	// The status of every person after the tick, removed persons included.
	Counts models.Counts `json:"counts" msgpack:"counts"`

	// The number of persons processed during the tick.
	Population int `json:"population" msgpack:"population"`

	// The number of dead persons that left the room.
	Removed int `json:"removed" msgpack:"removed"`

	NewInfections int `json:"new_infections" msgpack:"new_infections"`
	NewDeaths     int `json:"new_deaths"     msgpack:"new_deaths"`

	// Neighbor query counters: one query per processed person, the
	// candidates found in the bounding squares and the neighbors kept after
	// the distance filter, self matches excluded.
	Queries    int `json:"queries"    msgpack:"queries"`
	Candidates int `json:"candidates" msgpack:"candidates"`
	Neighbors  int `json:"neighbors"  msgpack:"neighbors"`

	Duration time.Duration `json:"duration" msgpack:"duration"`
}

// Simulation is a population living in a square room. Persons are indexed
// once, when the simulation is created, and never move.
//
// Tick must not be called concurrently. Neighbors and IndexDebugInfo only read
// the index and are safe to call at any time.
type Simulation struct {
	conf   Config
	rng    models.Rand
	index  *quadtree.Tree[models.Resident]
	engine *proximity.Engine[models.Resident]

	people      []*models.Person
	currentTime uint32
}

// New creates a simulation whose population is scattered randomly across the
// room. The first InitialInfected persons start infectious.
func New(conf Config, rng models.Rand) (*Simulation, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	var factory models.PersonFactory
	people := make([]*models.Person, 0, conf.PopulationSize)

	for i := 0; i < conf.PopulationSize; i++ {
		position := quadtree.Point{
			X: rng.Intn(conf.RoomSize),
			Y: rng.Intn(conf.RoomSize),
		}

		status := models.Healthy
		if i < conf.InitialInfected {
			status = models.Infectious
		}
		people = append(people, factory.NewPerson(status, position))
	}

	return NewWithPopulation(conf, rng, people)
}

// NewWithPopulation creates a simulation from the given persons. Persons
// whose status timer is missing are considered to have entered their status
// at time 0. A person outside of the room fails the creation.
func NewWithPopulation(conf Config, rng models.Rand, people []*models.Person) (*Simulation, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	bounds := quadtree.Region{
		Max: quadtree.Point{X: conf.RoomSize, Y: conf.RoomSize},
	}
	index, err := quadtree.New[models.Resident](bounds,
		quadtree.WithNodeCapacity(conf.NodeCapacity),
		quadtree.WithMaxDepth(conf.MaxDepth),
	)
	if err != nil {
		return nil, errors.New("creating spatial index failed").
			WithType(errors.Type(err)).
			Wrap(err)
	}

	engine, err := proximity.NewEngine[models.Resident](index, conf.InfluenceRadius)
	if err != nil {
		return nil, errors.New("creating proximity engine failed").
			WithType(errors.Type(err)).
			Wrap(err)
	}

	s := &Simulation{
		conf:   conf,
		rng:    rng,
		index:  index,
		engine: engine,
		people: make([]*models.Person, 0, len(people)),
	}

	ids := make(map[uint32]struct{}, len(people))
	for _, p := range people {
		if _, ok := ids[p.ID]; ok {
			return nil, errors.New("person id is already used").
				WithType(ErrTypeDuplicatePerson).
				WithTag("person_id", p.ID)
		}
		ids[p.ID] = struct{}{}

		if err := index.Insert(p.Resident()); err != nil {
			return nil, errors.New("adding person to the room failed").
				WithType(errors.Type(err)).
				WithTag("person_id", p.ID).
				Wrap(err)
		}

		fillTimers(p)
		s.people = append(s.people, p)
	}

	sort.Slice(s.people, func(i, j int) bool {
		return s.people[i].ID < s.people[j].ID
	})

	debugInfo := index.DebugInfo()
	logs.WithTag("population", len(s.people)).
		WithTag("room_size", conf.RoomSize).
		WithTag("index_nodes", debugInfo.NodeCount).
		WithTag("index_max_level", debugInfo.MaxLevel).
		Debug("population bootstrapped")

	return s, nil
}

func fillTimers(p *models.Person) {
	var zero uint32

	if p.Status >= models.Infectious && p.InfectedAt == nil {
		p.InfectedAt = &zero
	}
	if p.Status >= models.Sick && p.SickAt == nil {
		p.SickAt = &zero
	}
	if p.Status == models.Dead && p.DiedAt == nil {
		p.DiedAt = &zero
	}
}

func (s *Simulation) Config() Config {
	return s.conf
}

func (s *Simulation) CurrentTime() uint32 {
	return s.currentTime
}

// People returns a copy of the population ordered by id.
func (s *Simulation) People() []models.Person {
	people := make([]models.Person, len(s.people))
	for i, p := range s.people {
		people[i] = *p
	}
	return people
}

// Neighbors returns the residents within the influence radius of p.
func (s *Simulation) Neighbors(p quadtree.Point) ([]models.Resident, error) {
	return s.engine.Neighbors(p)
}

func (s *Simulation) IndexDebugInfo() quadtree.DebugInfo {
	return s.index.DebugInfo()
}

// Tick runs one simulation step at the current time and then advances the
// time. Neighbors of every person are discovered before any status changes,
// and every decision reads the statuses persons had when the tick started.
// When neighbor discovery fails, nothing is applied and the time does not
// advance.
func (s *Simulation) Tick(ctx context.Context) (Report, error) {
	start := time.Now()
	now := s.currentTime
	flags := s.conf.FeatureFlags

	report := Report{Time: now}

	working := make([]*models.Person, 0, len(s.people))
	for _, p := range s.people {
		if !flags.IsSet(featureflag.FlagDisableDeadRemoval) && p.IsRemoved(now, s.conf.Timings) {
			report.Removed++
			continue
		}
		working = append(working, p)
	}

	neighbors, candidates, err := s.discoverNeighbors(ctx, working)
	if err != nil {
		return Report{}, err
	}

	contagious := make(map[uint32]models.Status, len(working))
	for _, p := range working {
		if p.Status.Contagious() {
			contagious[p.ID] = p.Status
		}
	}

	for i, p := range working {
		report.Queries++
		report.Candidates += candidates[i]
		report.Neighbors += len(neighbors[i])

		switch p.Status {
		case models.Healthy:
			if flags.IsSet(featureflag.FlagDisableInfection) {
				continue
			}
			if s.isExposed(neighbors[i], contagious) && p.Infect(now) {
				report.NewInfections++
			}

		case models.Sick:
			if flags.IsSet(featureflag.FlagDisableDeath) {
				continue
			}
			p.Tick(now, s.conf.Timings, s.rng)
			if p.Status == models.Dead {
				report.NewDeaths++
			}

		default:
			p.Tick(now, s.conf.Timings, s.rng)
		}
	}

	for _, p := range s.people {
		report.Counts.Add(p.Status)
	}
	report.Population = len(working)
	report.Duration = time.Since(start)

	s.currentTime++
	return report, nil
}

// discoverNeighbors queries the neighbors of every person, splitting the work
// across the configured number of workers. Results are indexed like persons.
func (s *Simulation) discoverNeighbors(ctx context.Context, people []*models.Person) ([][]models.Resident, []int, error) {
	neighbors := make([][]models.Resident, len(people))
	candidates := make([]int, len(people))
	if len(people) == 0 {
		return neighbors, candidates, nil
	}

	chunkSize := (len(people) + s.conf.Workers - 1) / s.conf.Workers
	g, gctx := errgroup.WithContext(ctx)

	for begin := 0; begin < len(people); begin += chunkSize {
		end := min(begin+chunkSize, len(people))

		g.Go(func() error {
			for i := begin; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				p := people[i]
				res, err := s.engine.Query(p.Position)
				if err != nil {
					return errors.New("discovering neighbors failed").
						WithType(errors.Type(err)).
						WithTag("person_id", p.ID).
						WithTag("time", s.currentTime).
						Wrap(err)
				}

				self := p.Resident()
				others := make([]models.Resident, 0, len(res.Neighbors))
				for _, n := range res.Neighbors {
					if !models.SameResident(self, n) {
						others = append(others, n)
					}
				}
				neighbors[i] = others
				candidates[i] = res.Candidates
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}
	return neighbors, candidates, nil
}

// isExposed rolls one infection chance per contagious neighbor, in id order,
// and reports whether any of them succeeded.
func (s *Simulation) isExposed(neighbors []models.Resident, contagious map[uint32]models.Status) bool {
	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].ID < neighbors[j].ID
	})

	for _, n := range neighbors {
		status, ok := contagious[n.ID]
		if !ok {
			continue
		}
		if s.rng.Float64() < s.conf.InfectionRates.For(status) {
			return true
		}
	}
	return false
}
