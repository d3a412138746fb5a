package proximity

import (
	"math"

	"github.com/aukilabs/contagion/quadtree"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// The influence radius used when none is configured.
	DefaultRadius = 25

	// The largest influence radius an engine accepts.
	MaxRadius = math.MaxInt32

	ErrTypeInvalidRadius = "invalid_radius"
)

// Engine finds the values stored in a spatial index that lie within a fixed
// radius of a point.
type Engine[T quadtree.Locatable] struct {
	index  quadtree.SpatialIndex[T]
	radius float64
}

func NewEngine[T quadtree.Locatable](index quadtree.SpatialIndex[T], radius float64) (*Engine[T], error) {
	if !(radius > 0) || radius > MaxRadius {
		return nil, errors.Newf("radius must be a positive number up to %d", MaxRadius).
			WithType(ErrTypeInvalidRadius).
			WithTag("radius", radius)
	}

	return &Engine[T]{
		index:  index,
		radius: radius,
	}, nil
}

func (e *Engine[T]) Radius() float64 {
	return e.radius
}

// Result is the outcome of a neighbor query.
type Result[T quadtree.Locatable] struct {
	// The values within the radius.
	Neighbors []T

	// The number of values found in the bounding square before the distance
	// filter.
	Candidates int
}

// Query returns the values within the engine radius of p. A value located at
// p itself is part of the result.
func (e *Engine[T]) Query(p quadtree.Point) (Result[T], error) {
	candidates, err := e.index.QueryRange(SquareAround(p, e.radius))
	if err != nil {
		instrumentQueryError(err)
		return Result[T]{}, errors.New("querying neighbor candidates failed").
			WithType(errors.Type(err)).
			WithTag("x", p.X).
			WithTag("y", p.Y).
			WithTag("radius", e.radius).
			Wrap(err)
	}

	res := Result[T]{
		Candidates: len(candidates),
		Neighbors:  candidates[:0],
	}
	for _, c := range candidates {
		if Distance(p, c.Coordinates()) <= e.radius {
			res.Neighbors = append(res.Neighbors, c)
		}
	}

	instrumentQuery(res.Candidates, len(res.Neighbors))
	return res, nil
}

func (e *Engine[T]) Neighbors(p quadtree.Point) ([]T, error) {
	res, err := e.Query(p)
	return res.Neighbors, err
}

// NeighborsOf returns the values within the engine radius of v, leaving out
// the candidates for which same(v, candidate) is true.
func (e *Engine[T]) NeighborsOf(v T, same func(a, b T) bool) ([]T, error) {
	neighbors, err := e.Neighbors(v.Coordinates())
	if err != nil {
		return nil, err
	}

	others := neighbors[:0]
	for _, n := range neighbors {
		if !same(v, n) {
			others = append(others, n)
		}
	}
	return others, nil
}

// SquareAround returns the square of side 2*radius centered on p. The radius
// is rounded up so the square contains the whole circle. The square is not
// clipped against any domain; corners that would overflow an int are
// clamped to the int range. A radius that is not positive gives the point
// itself.
func SquareAround(p quadtree.Point, radius float64) quadtree.Region {
	var r int
	switch c := math.Ceil(radius); {
	case c <= 0:
	case c < math.MaxInt:
		r = int(c)
	default:
		r = math.MaxInt
	}

	return quadtree.Region{
		Min: quadtree.Point{X: subClamped(p.X, r), Y: subClamped(p.Y, r)},
		Max: quadtree.Point{X: addClamped(p.X, r), Y: addClamped(p.Y, r)},
	}
}

// addClamped returns a+b for b >= 0, clamped to math.MaxInt.
func addClamped(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// subClamped returns a-b for b >= 0, clamped to math.MinInt.
func subClamped(a, b int) int {
	if a < math.MinInt+b {
		return math.MinInt
	}
	return a - b
}

// Distance returns the euclidean distance between a and b, computed in
// floating point.
func Distance(a, b quadtree.Point) float64 {
	dx := float64(a.X) - float64(b.X)
	dy := float64(a.Y) - float64(b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
