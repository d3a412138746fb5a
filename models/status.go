package models

import (
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Status is the health state of a person. A person only moves forward through
// the states: Healthy, Infectious, Sick, Dead.
type Status int

const (
	Healthy Status = iota
	Infectious
	Sick
	Dead
)

// Statuses lists every status in progression order.
var Statuses = []Status{Healthy, Infectious, Sick, Dead}

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Infectious:
		return "infectious"
	case Sick:
		return "sick"
	case Dead:
		return "dead"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for _, status := range Statuses {
		if status.String() == string(b) {
			*s = status
			return nil
		}
	}
	return errors.New("unknown status").WithTag("status", string(b))
}

// Contagious reports whether a person in this status can infect others.
func (s Status) Contagious() bool {
	return s == Infectious || s == Sick || s == Dead
}

// Direction is where a person is facing.
type Direction int

const (
	Top Direction = iota
	Right
	Down
	Left
)

func (d Direction) String() string {
	switch d {
	case Top:
		return "top"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Counts is the number of persons in each status.
type Counts struct {
	Healthy    int `json:"healthy"    msgpack:"healthy"`
	Infectious int `json:"infectious" msgpack:"infectious"`
	Sick       int `json:"sick"       msgpack:"sick"`
	Dead       int `json:"dead"       msgpack:"dead"`
}

func (c *Counts) Add(s Status) {
	switch s {
	case Healthy:
		c.Healthy++
	case Infectious:
		c.Infectious++
	case Sick:
		c.Sick++
	case Dead:
		c.Dead++
	}
}

func (c Counts) Get(s Status) int {
	switch s {
	case Healthy:
		return c.Healthy
	case Infectious:
		return c.Infectious
	case Sick:
		return c.Sick
	case Dead:
		return c.Dead
	default:
		return 0
	}
}

func (c Counts) Total() int {
	return c.Healthy + c.Infectious + c.Sick + c.Dead
}
