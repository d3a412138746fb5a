package quadtree

import (
	"math/rand"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

const roomSize = 800

type value struct {
	ID int
	P  Point
}

func (v value) Coordinates() Point {
	return v.P
}

func room() Region {
	return Region{Min: Point{0, 0}, Max: Point{roomSize, roomSize}}
}

func newTestTree(t *testing.T, opts ...Option) *Tree[value] {
	tree, err := New[value](room(), opts...)
	require.NoError(t, err)
	return tree
}

func randomValues(rng *rand.Rand, n int) []value {
	values := make([]value, n)
	for i := range values {
		values[i] = value{
			ID: i,
			P:  Point{rng.Intn(roomSize + 1), rng.Intn(roomSize + 1)},
		}
	}
	return values
}

func TestNew(t *testing.T) {
	t.Run("empty tree", func(t *testing.T) {
		tree := newTestTree(t)
		require.Zero(t, tree.Len())
		require.Equal(t, room(), tree.Bounds())

		info := tree.DebugInfo()
		require.Equal(t, 1, info.NodeCount)
		require.Equal(t, DefaultNodeCapacity, info.NodeCapacity)
		require.Equal(t, DefaultMaxDepth, info.MaxDepth)
	})

	t.Run("degenerate bounds are rejected", func(t *testing.T) {
		degenerate := []Region{
			{Min: Point{0, 0}, Max: Point{0, 800}},
			{Min: Point{0, 0}, Max: Point{800, 0}},
			{Min: Point{10, 10}, Max: Point{0, 0}},
		}

		for _, bounds := range degenerate {
			tree, err := New[value](bounds)
			require.Nil(t, tree)
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeInvalidRegion))
		}
	})

	t.Run("options", func(t *testing.T) {
		tree := newTestTree(t, WithNodeCapacity(4), WithMaxDepth(3))
		require.Equal(t, 4, tree.nodeCapacity)
		require.Equal(t, 3, tree.maxDepth)

		tree = newTestTree(t, WithNodeCapacity(0), WithMaxDepth(-1))
		require.Equal(t, DefaultNodeCapacity, tree.nodeCapacity)
		require.Equal(t, DefaultMaxDepth, tree.maxDepth)
	})
}

func TestTreeInsert(t *testing.T) {
	t.Run("out of bounds value is rejected", func(t *testing.T) {
		tree := newTestTree(t)
		require.NoError(t, tree.Insert(value{ID: 1, P: Point{5, 5}}))

		err := tree.Insert(value{ID: 2, P: Point{-1, 5}})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeOutOfBounds))
		require.Equal(t, 1, tree.Len())

		err = tree.Insert(value{ID: 3, P: Point{5, roomSize + 1}})
		require.True(t, errors.IsType(err, ErrTypeOutOfBounds))
		require.Equal(t, 1, tree.Len())
	})

	t.Run("boundary values are accepted", func(t *testing.T) {
		tree := newTestTree(t)
		corners := []Point{{0, 0}, {roomSize, 0}, {0, roomSize}, {roomSize, roomSize}}
		for i, p := range corners {
			require.NoError(t, tree.Insert(value{ID: i, P: p}))
		}
		require.Equal(t, len(corners), tree.Len())
	})

	t.Run("capacity triggers a single subdivision", func(t *testing.T) {
		tree := newTestTree(t)

		for i := 0; i < DefaultNodeCapacity; i++ {
			require.NoError(t, tree.Insert(value{ID: i, P: Point{i, i}}))
		}
		require.Len(t, tree.nodes, 1)
		require.False(t, tree.nodes[0].split)

		require.NoError(t, tree.Insert(value{ID: DefaultNodeCapacity, P: Point{700, 700}}))
		require.Len(t, tree.nodes, 5)
		require.True(t, tree.nodes[0].split)
		require.Equal(t, DefaultNodeCapacity+1, tree.Len())

		// Values stored before the split stay at the root.
		require.Len(t, tree.nodes[0].values, DefaultNodeCapacity)

		se := tree.nodes[tree.nodes[0].children[SE]]
		require.Len(t, se.values, 1)
		require.Equal(t, DefaultNodeCapacity, se.values[0].ID)
		require.Equal(t, 1, se.level)
	})

	t.Run("values on a split line go to the first matching child", func(t *testing.T) {
		tree := newTestTree(t, WithNodeCapacity(1))
		require.NoError(t, tree.Insert(value{ID: 0, P: Point{10, 10}}))
		require.NoError(t, tree.Insert(value{ID: 1, P: Point{400, 400}}))

		nw := tree.nodes[tree.nodes[0].children[NW]]
		require.Len(t, nw.values, 1)
		require.Equal(t, 1, nw.values[0].ID)
	})

	t.Run("values sharing a coordinate overflow at max depth", func(t *testing.T) {
		tree := newTestTree(t, WithNodeCapacity(4), WithMaxDepth(3))

		for i := 0; i < 100; i++ {
			require.NoError(t, tree.Insert(value{ID: i, P: Point{123, 456}}))
		}
		require.Equal(t, 100, tree.Len())

		info := tree.DebugInfo()
		require.Equal(t, 3, info.MaxLevel)
		require.Equal(t, 1, info.OverflowCount)
		require.Equal(t, 100-3*4, info.MaxOccupancy)

		values, err := tree.QueryRange(Region{Min: Point{123, 456}, Max: Point{123, 456}})
		require.NoError(t, err)
		require.Len(t, values, 100)
	})

	t.Run("detects children that do not cover their parent", func(t *testing.T) {
		tree := newTestTree(t, WithNodeCapacity(1))
		require.NoError(t, tree.Insert(value{ID: 0, P: Point{1, 1}}))
		require.NoError(t, tree.Insert(value{ID: 1, P: Point{2, 2}}))

		for _, c := range tree.nodes[0].children {
			tree.nodes[c].region = Region{Min: Point{-10, -10}, Max: Point{-5, -5}}
		}

		err := tree.Insert(value{ID: 2, P: Point{3, 3}})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeIndexCorruption))
		require.Equal(t, 2, tree.Len())
	})
}

func TestTreeQueryRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := randomValues(rng, 1000)

	tree := newTestTree(t)
	for _, v := range values {
		require.NoError(t, tree.Insert(v))
	}
	require.Equal(t, len(values), tree.Len())

	t.Run("full domain returns every value once", func(t *testing.T) {
		res, err := tree.QueryRange(tree.Bounds())
		require.NoError(t, err)
		require.ElementsMatch(t, values, res)
	})

	t.Run("result does not depend on insertion order", func(t *testing.T) {
		shuffled := make([]value, len(values))
		copy(shuffled, values)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		other := newTestTree(t)
		for _, v := range shuffled {
			require.NoError(t, other.Insert(v))
		}

		res, err := other.QueryRange(other.Bounds())
		require.NoError(t, err)
		require.ElementsMatch(t, values, res)
	})

	t.Run("results match a linear scan", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			a := Point{rng.Intn(roomSize+200) - 100, rng.Intn(roomSize+200) - 100}
			b := Point{rng.Intn(roomSize+200) - 100, rng.Intn(roomSize+200) - 100}
			q := Region{
				Min: Point{min(a.X, b.X), min(a.Y, b.Y)},
				Max: Point{max(a.X, b.X), max(a.Y, b.Y)},
			}

			var expected []value
			for _, v := range values {
				if q.Contains(v.P) {
					expected = append(expected, v)
				}
			}

			res, err := tree.QueryRange(q)
			require.NoError(t, err)
			require.ElementsMatch(t, expected, res, "query %s", q)
		}
	})

	t.Run("split line values are found from every side", func(t *testing.T) {
		tree := newTestTree(t, WithNodeCapacity(1))
		require.NoError(t, tree.Insert(value{ID: 0, P: Point{10, 10}}))
		require.NoError(t, tree.Insert(value{ID: 1, P: Point{400, 400}}))

		for _, q := range tree.Bounds().Quarter() {
			res, err := tree.QueryRange(q)
			require.NoError(t, err)
			require.Contains(t, res, value{ID: 1, P: Point{400, 400}})
		}
	})

	t.Run("region outside the domain returns nothing", func(t *testing.T) {
		res, err := tree.QueryRange(Region{Min: Point{900, 900}, Max: Point{1000, 1000}})
		require.NoError(t, err)
		require.Empty(t, res)
	})

	t.Run("querying twice returns the same set", func(t *testing.T) {
		q := Region{Min: Point{100, 200}, Max: Point{350, 600}}

		first, err := tree.QueryRange(q)
		require.NoError(t, err)

		second, err := tree.QueryRange(q)
		require.NoError(t, err)
		require.ElementsMatch(t, first, second)
	})

	t.Run("inverted region is rejected", func(t *testing.T) {
		res, err := tree.QueryRange(Region{Min: Point{10, 10}, Max: Point{0, 0}})
		require.Nil(t, res)
		require.True(t, errors.IsType(err, ErrTypeInvalidRegion))
	})
}

func TestTreeEach(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := randomValues(rng, 300)

	tree := newTestTree(t)
	for _, v := range values {
		require.NoError(t, tree.Insert(v))
	}

	var visited []value
	tree.Each(func(v value) {
		visited = append(visited, v)
	})
	require.ElementsMatch(t, values, visited)
}

func TestTreeDebugInfo(t *testing.T) {
	tree := newTestTree(t, WithNodeCapacity(2))
	points := []Point{{10, 10}, {20, 20}, {700, 700}, {710, 710}, {720, 720}}
	for i, p := range points {
		require.NoError(t, tree.Insert(value{ID: i, P: p}))
	}

	info := tree.DebugInfo()
	require.Equal(t, len(points), info.Size)
	require.Equal(t, 9, info.NodeCount)
	require.Equal(t, 7, info.LeafCount)
	require.Equal(t, 2, info.MaxLevel)
	require.Equal(t, 2, info.MaxOccupancy)
	require.Zero(t, info.OverflowCount)
}

func TestTreeImplementsSpatialIndex(t *testing.T) {
	var index SpatialIndex[value] = newTestTree(t)
	require.NoError(t, index.Insert(value{ID: 1, P: Point{1, 1}}))
	require.Equal(t, 1, index.Len())
}
