package models

import (
	"github.com/aukilabs/contagion/quadtree"
)

// Timings holds the durations, in ticks, that drive status progression.
type Timings struct {
	// Ticks spent infectious before becoming sick.
	TimeInfectious uint32 `json:"time_infectious"`

	// Ticks spent sick before death rolls start.
	TimeSick uint32 `json:"time_sick"`

	// Ticks a dead person stays in the room before being removed.
	RemoveDeadAfter uint32 `json:"remove_dead_after"`

	// Probability of dying, rolled every tick once TimeSick elapsed.
	DieRate float64 `json:"die_rate"`
}

func DefaultTimings() Timings {
	return Timings{
		TimeInfectious:  50,
		TimeSick:        20,
		RemoveDeadAfter: 20,
		DieRate:         0.0001,
	}
}

// Rand is the source of randomness used by status transitions and the
// population bootstrap. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type Person struct {
	ID              uint32
	Position        quadtree.Point
	Status          Status
	FacingDirection Direction

	InfectedAt *uint32
	SickAt     *uint32
	DiedAt     *uint32
}

// Infect makes a healthy person infectious at the given time. It reports
// whether the status changed.
func (p *Person) Infect(time uint32) bool {
	if p.Status != Healthy {
		return false
	}

	p.Status = Infectious
	p.InfectedAt = &time
	instrumentInfection()
	return true
}

// Tick advances the status of the person at the given time. It returns the
// status the person had before the call.
func (p *Person) Tick(time uint32, timings Timings, rng Rand) Status {
	previous := p.Status

	switch p.Status {
	case Infectious:
		if p.isSick(time, timings) {
			p.Status = Sick
			p.SickAt = &time
		}

	case Sick:
		if p.isDead(time, timings, rng) {
			p.Status = Dead
			p.DiedAt = &time
			instrumentDeath()
		}
	}

	return previous
}

func (p *Person) isSick(time uint32, timings Timings) bool {
	return p.InfectedAt != nil && time >= *p.InfectedAt+timings.TimeInfectious
}

func (p *Person) isDead(time uint32, timings Timings, rng Rand) bool {
	if p.SickAt == nil || time < *p.SickAt+timings.TimeSick {
		return false
	}
	return rng.Float64() <= timings.DieRate
}

// IsRemoved reports whether the person has been dead long enough to leave the
// room.
func (p *Person) IsRemoved(time uint32, timings Timings) bool {
	return p.Status == Dead &&
		p.DiedAt != nil &&
		time >= *p.DiedAt+timings.RemoveDeadAfter
}

// Resident returns the spatial index entry of the person.
func (p *Person) Resident() Resident {
	return Resident{
		ID:       p.ID,
		Position: p.Position,
	}
}

// Resident is the immutable part of a person stored in the spatial index.
type Resident struct {
	ID       uint32         `json:"id"       msgpack:"id"`
	Position quadtree.Point `json:"position" msgpack:"position"`
}

func (r Resident) Coordinates() quadtree.Point {
	return r.Position
}

// SameResident reports whether both entries describe the same person.
func SameResident(a, b Resident) bool {
	return a.ID == b.ID
}

// PersonFactory creates persons with sequential ids.
type PersonFactory struct {
	ids IDGenerator
}

func (f *PersonFactory) NewPerson(status Status, position quadtree.Point) *Person {
	return &Person{
		ID:              f.ids.Next(),
		Position:        position,
		Status:          status,
		FacingDirection: Right,
	}
}
