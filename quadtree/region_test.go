package quadtree

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewRegion(t *testing.T) {
	t.Run("valid region", func(t *testing.T) {
		r, err := NewRegion(Point{0, 0}, Point{10, 20})
		require.NoError(t, err)
		require.Equal(t, 10, r.Width())
		require.Equal(t, 20, r.Height())
		require.Equal(t, 200, r.Area())
	})

	t.Run("zero sized region is valid", func(t *testing.T) {
		_, err := NewRegion(Point{5, 5}, Point{5, 5})
		require.NoError(t, err)
	})

	t.Run("inverted region is rejected", func(t *testing.T) {
		_, err := NewRegion(Point{10, 0}, Point{0, 10})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidRegion))
	})
}

func TestRegionContains(t *testing.T) {
	r := Region{Min: Point{0, 0}, Max: Point{800, 800}}

	require.True(t, r.Contains(Point{0, 0}))
	require.True(t, r.Contains(Point{800, 800}))
	require.True(t, r.Contains(Point{0, 800}))
	require.True(t, r.Contains(Point{400, 123}))
	require.False(t, r.Contains(Point{-1, 5}))
	require.False(t, r.Contains(Point{5, 801}))
}

func TestRegionOverlaps(t *testing.T) {
	r := Region{Min: Point{0, 0}, Max: Point{10, 10}}

	tests := []struct {
		name     string
		other    Region
		overlaps bool
	}{
		{
			name:     "inside",
			other:    Region{Min: Point{2, 2}, Max: Point{3, 3}},
			overlaps: true,
		},
		{
			name:     "enclosing",
			other:    Region{Min: Point{-5, -5}, Max: Point{50, 50}},
			overlaps: true,
		},
		{
			name:     "touching edge",
			other:    Region{Min: Point{10, 0}, Max: Point{20, 10}},
			overlaps: true,
		},
		{
			name:     "touching corner",
			other:    Region{Min: Point{10, 10}, Max: Point{11, 11}},
			overlaps: true,
		},
		{
			name:     "disjoint on x",
			other:    Region{Min: Point{11, 0}, Max: Point{20, 10}},
			overlaps: false,
		},
		{
			name:     "disjoint on y",
			other:    Region{Min: Point{0, -20}, Max: Point{10, -1}},
			overlaps: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.overlaps, r.Overlaps(test.other))
			require.Equal(t, test.overlaps, test.other.Overlaps(r))
		})
	}
}

func TestRegionQuarter(t *testing.T) {
	regions := []Region{
		{Min: Point{0, 0}, Max: Point{800, 800}},
		{Min: Point{0, 0}, Max: Point{801, 799}},
		{Min: Point{-7, 3}, Max: Point{6, 4}},
		{Min: Point{0, 0}, Max: Point{1, 1}},
	}

	for _, r := range regions {
		t.Run(r.String(), func(t *testing.T) {
			quarters := r.Quarter()

			area := 0
			for _, q := range quarters {
				require.LessOrEqual(t, q.Min.X, q.Max.X)
				require.LessOrEqual(t, q.Min.Y, q.Max.Y)
				require.True(t, r.Contains(q.Min))
				require.True(t, r.Contains(q.Max))
				area += q.Area()
			}
			require.Equal(t, r.Area(), area)

			for i := range quarters {
				for j := i + 1; j < len(quarters); j++ {
					require.Zero(t, intersectionArea(quarters[i], quarters[j]),
						"%s and %s share more than an edge",
						Quadrant(i), Quadrant(j))
				}
			}
		})
	}

	t.Run("children cover the parent", func(t *testing.T) {
		r := Region{Min: Point{0, 0}, Max: Point{9, 7}}
		quarters := r.Quarter()

		for x := r.Min.X; x <= r.Max.X; x++ {
			for y := r.Min.Y; y <= r.Max.Y; y++ {
				p := Point{x, y}
				covered := false
				for _, q := range quarters {
					covered = covered || q.Contains(p)
				}
				require.True(t, covered, "%s is not covered", p)
			}
		}
	})
}

func TestQuadrantString(t *testing.T) {
	require.Equal(t, "nw", NW.String())
	require.Equal(t, "ne", NE.String())
	require.Equal(t, "sw", SW.String())
	require.Equal(t, "se", SE.String())
	require.Equal(t, "quadrant(9)", Quadrant(9).String())
}

func intersectionArea(a, b Region) int {
	w := min(a.Max.X, b.Max.X) - max(a.Min.X, b.Min.X)
	h := min(a.Max.Y, b.Max.Y) - max(a.Min.Y, b.Min.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}
