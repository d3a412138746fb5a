package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// The number of values a node holds before it subdivides.
	DefaultNodeCapacity = 16

	// The level past which nodes stop subdividing and overflow instead.
	DefaultMaxDepth = 16
)

// SpatialIndex is the interface that describes a structure storing values in
// a bounded plane.
type SpatialIndex[T Locatable] interface {
	// Stores a value. Values outside of the index bounds are rejected with an
	// ErrTypeOutOfBounds error.
	Insert(v T) error

	// Returns the stored values contained in the given region, in no
	// particular order.
	QueryRange(r Region) ([]T, error)

	// Returns the number of stored values.
	Len() int

	// Returns the region covered by the index.
	Bounds() Region
}

type Option func(*options)

type options struct {
	nodeCapacity int
	maxDepth     int
}

// WithNodeCapacity sets how many values a node holds before subdividing.
func WithNodeCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.nodeCapacity = n
		}
	}
}

// WithMaxDepth sets the deepest level a node can be created at. Nodes at that
// level keep accepting values beyond their capacity.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

type node[T Locatable] struct {
	region   Region
	values   []T
	split    bool
	children [4]int32
	level    int
}

// Tree is a region quadtree. Nodes live in a single arena and reference their
// children by index; a node has either no children or exactly four.
//
// A node keeps the values it stored before subdividing. Only values inserted
// after the split are routed to children, so a node that filled up early
// stays full for the lifetime of the tree.
//
// Tree is not safe for concurrent mutation. Once all values are inserted,
// QueryRange can be called from multiple goroutines.
type Tree[T Locatable] struct {
	nodes        []node[T]
	size         int
	nodeCapacity int
	maxDepth     int
}

// New creates an empty tree covering the given bounds.
func New[T Locatable](bounds Region, opts ...Option) (*Tree[T], error) {
	if bounds.Width() <= 0 || bounds.Height() <= 0 {
		return nil, errors.New("tree bounds must have a positive width and height").
			WithType(ErrTypeInvalidRegion).
			WithTag("bounds", bounds.String())
	}

	o := options{
		nodeCapacity: DefaultNodeCapacity,
		maxDepth:     DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Tree[T]{
		nodeCapacity: o.nodeCapacity,
		maxDepth:     o.maxDepth,
	}
	t.nodes = append(t.nodes, node[T]{region: bounds})
	return t, nil
}

func (t *Tree[T]) Insert(v T) error {
	p := v.Coordinates()

	root := t.nodes[0].region
	if !root.Contains(p) {
		return errors.New("value is outside of the tree bounds").
			WithType(ErrTypeOutOfBounds).
			WithTag("x", p.X).
			WithTag("y", p.Y).
			WithTag("bounds", root.String())
	}

	i := int32(0)
	for {
		n := &t.nodes[i]

		if !n.split {
			if len(n.values) < t.nodeCapacity || n.level >= t.maxDepth {
				n.values = append(n.values, v)
				t.size++
				return nil
			}
			t.subdivide(i)
		}

		child, ok := t.route(i, p)
		if !ok {
			n = &t.nodes[i]
			return errors.New("no child node accepts the value").
				WithType(ErrTypeIndexCorruption).
				WithTag("x", p.X).
				WithTag("y", p.Y).
				WithTag("level", n.level).
				WithTag("region", n.region.String())
		}
		i = child
	}
}

// subdivide appends four children quartering the node at index i. It grows
// the arena, so pointers to nodes taken before the call are stale after it.
func (t *Tree[T]) subdivide(i int32) {
	region := t.nodes[i].region
	level := t.nodes[i].level + 1
	first := int32(len(t.nodes))

	for q, r := range region.Quarter() {
		t.nodes = append(t.nodes, node[T]{
			region: r,
			level:  level,
		})
		t.nodes[i].children[q] = first + int32(q)
	}
	t.nodes[i].split = true
}

// route returns the first child of the node at index i, in NW, NE, SW, SE
// order, that contains p.
func (t *Tree[T]) route(i int32, p Point) (int32, bool) {
	for _, c := range t.nodes[i].children {
		if t.nodes[c].region.Contains(p) {
			return c, true
		}
	}
	return 0, false
}

func (t *Tree[T]) QueryRange(r Region) ([]T, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	var result []T
	stack := []int32{0}

	for len(stack) != 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[i]
		if !n.region.Overlaps(r) {
			continue
		}

		for _, v := range n.values {
			if r.Contains(v.Coordinates()) {
				result = append(result, v)
			}
		}

		if n.split {
			// Reversed so children pop in NW, NE, SW, SE order.
			for q := SE; q >= NW; q-- {
				stack = append(stack, n.children[q])
			}
		}
	}

	return result, nil
}

// Each calls fn for every stored value.
func (t *Tree[T]) Each(fn func(T)) {
	for i := range t.nodes {
		for _, v := range t.nodes[i].values {
			fn(v)
		}
	}
}

func (t *Tree[T]) Len() int {
	return t.size
}

func (t *Tree[T]) Bounds() Region {
	return t.nodes[0].region
}
