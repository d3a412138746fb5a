package quadtree

import (
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Point is a position in the plane.
type Point struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Locatable is implemented by values that can be stored in a Tree.
type Locatable interface {
	Coordinates() Point
}

// Coordinates makes a bare Point storable.
func (p Point) Coordinates() Point {
	return p
}

// Region is an axis-aligned rectangle. Containment is closed: points lying on
// an edge belong to the region.
type Region struct {
	Min Point `json:"min" msgpack:"min"`
	Max Point `json:"max" msgpack:"max"`
}

// NewRegion returns the region spanning min to max. It fails when min is
// greater than max on either axis.
func NewRegion(min, max Point) (Region, error) {
	r := Region{Min: min, Max: max}
	if err := r.validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

func (r Region) validate() error {
	if r.Min.X > r.Max.X || r.Min.Y > r.Max.Y {
		return errors.New("region min corner is greater than its max corner").
			WithType(ErrTypeInvalidRegion).
			WithTag("region", r.String())
	}
	return nil
}

func (r Region) Width() int {
	return r.Max.X - r.Min.X
}

func (r Region) Height() int {
	return r.Max.Y - r.Min.Y
}

func (r Region) Area() int {
	return r.Width() * r.Height()
}

func (r Region) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X &&
		p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Overlaps reports whether both regions share at least one point, edges
// included.
func (r Region) Overlaps(o Region) bool {
	return r.Min.X <= o.Max.X &&
		o.Min.X <= r.Max.X &&
		r.Min.Y <= o.Max.Y &&
		o.Min.Y <= r.Max.Y
}

// Quarter splits the region at its midpoint into NW, NE, SW and SE regions.
// The low half of each dimension is rounded down so both halves add up to the
// parent dimension. Y grows southwards.
func (r Region) Quarter() [4]Region {
	halfW := r.Width() / 2
	halfH := r.Height() / 2
	midX := r.Min.X + halfW
	midY := r.Min.Y + halfH

	return [4]Region{
		NW: {Min: r.Min, Max: Point{midX, midY}},
		NE: {Min: Point{midX, r.Min.Y}, Max: Point{r.Max.X, midY}},
		SW: {Min: Point{r.Min.X, midY}, Max: Point{midX, r.Max.Y}},
		SE: {Min: Point{midX, midY}, Max: r.Max},
	}
}

func (r Region) String() string {
	return fmt.Sprintf("[%s %s]", r.Min, r.Max)
}

// Quadrant names a child of a subdivided node. Values double as child
// indexes and define the order in which children are tried.
type Quadrant int

const (
	NW Quadrant = iota
	NE
	SW
	SE
)

func (q Quadrant) String() string {
	switch q {
	case NW:
		return "nw"
	case NE:
		return "ne"
	case SW:
		return "sw"
	case SE:
		return "se"
	default:
		return fmt.Sprintf("quadrant(%d)", int(q))
	}
}
