package parcels

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCellContainmentRectilinear checks that reconstructing the query
// point from the located cell's corners and local coordinates reproduces
// the original point.
func TestCellContainmentRectilinear(t *testing.T) {
	g, err := NewRectilinearZGrid([]float64{0, 10, 20, 30}, []float64{0, 10, 20}, []float64{0}, []float64{0}, time.Time{}, MeshFlat)
	require.NoError(t, err)

	loc, err := locateCell(g, 23.0, 4.0, 0, -1, -1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, loc.Xi)
	assert.Equal(t, 0, loc.Yi)

	lon0, lon1 := g.Lon.Get(loc.Xi), g.Lon.Get(loc.Xi+1)
	lat0, lat1 := g.Lat.Get(loc.Yi), g.Lat.Get(loc.Yi+1)
	gotX := lon0 + loc.Xsi*(lon1-lon0)
	gotY := lat0 + loc.Eta*(lat1-lat0)
	assert.InDelta(t, 23.0, gotX, 1e-4)
	assert.InDelta(t, 4.0, gotY, 1e-4)
}

func TestCellContainmentOutOfBounds(t *testing.T) {
	g, err := NewRectilinearZGrid([]float64{0, 10, 20}, []float64{0, 10}, []float64{0}, []float64{0}, time.Time{}, MeshFlat)
	require.NoError(t, err)
	_, err = locateCell(g, 100, 5, 0, -1, -1, 0, 0)
	require.ErrorIs(t, err, ErrOutOfBounds)
}

// TestCurvilinearUniformRotation checks that a curvilinear grid built by
// rotating a regular Cartesian lattice locates a point
// back to the same (xsi,eta) the unrotated rectilinear lattice would give.
func TestCurvilinearUniformRotation(t *testing.T) {
	const theta = 0.3
	cos, sin := math.Cos(theta), math.Sin(theta)
	rotate := func(x, y float64) (float64, float64) {
		return x*cos - y*sin, x*sin + y*cos
	}

	n := 5
	lon := make([][]float64, n)
	lat := make([][]float64, n)
	for j := 0; j < n; j++ {
		lon[j] = make([]float64, n)
		lat[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			lon[j][i], lat[j][i] = rotate(float64(i), float64(j))
		}
	}
	g, err := NewCurvilinearZGrid(lon, lat, []float64{0}, []float64{0}, time.Time{}, MeshFlat)
	require.NoError(t, err)

	qx, qy := rotate(2.25, 1.5)
	loc, err := locateCurvilinear(g, qx, qy, -1, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, loc.Xi)
	assert.Equal(t, 1, loc.Yi)
	assert.InDelta(t, 0.25, loc.Xsi, 1e-6)
	assert.InDelta(t, 0.5, loc.Eta, 1e-6)
}

// TestSGridDepthSampling checks that the depth column at a horizontal
// cell is bilinearly blended from its four bracketing columns.
func TestSGridDepthSampling(t *testing.T) {
	lon := []float64{0, 1, 2}
	lat := []float64{0, 1, 2}
	// depth[x][y][z]: each column spans [0,10] but the three columns at
	// x == 2 are offset by 2 so bilinear blending at the midpoint cell is
	// non-trivial.
	depth := make([][][]float64, 3)
	for x := range depth {
		depth[x] = make([][]float64, 3)
		for y := range depth[x] {
			base := 0.0
			if x == 2 {
				base = 2.0
			}
			depth[x][y] = []float64{base, base + 5, base + 10}
		}
	}
	g, err := NewRectilinearSGrid(lon, lat, depth, nil, []float64{0}, time.Time{}, MeshFlat)
	require.NoError(t, err)

	col := synthesizeColumn(g, 1, 0, 0.5, 0, 0, 0)
	require.Len(t, col, 3)
	assert.InDelta(t, 1.0, col[0], 1e-9)
	assert.InDelta(t, 6.0, col[1], 1e-9)
	assert.InDelta(t, 11.0, col[2], 1e-9)
}

// TestCurvilinearDegenerateCellUsesAverageSlope exercises the near-parallel
// (aa≈0) branch of locateCurvilinear, which falls back to the averaged
// linear estimate instead of the quadratic root, and must still produce a
// finite, in-range local coordinate rather than propagating NaN.
func TestCurvilinearDegenerateCellUsesAverageSlope(t *testing.T) {
	// A sheared (parallelogram) cell: corners (0,0) (1,0) (1.5,1) (0.5,1).
	// This is an affine map, so the bilinear cross term vanishes and
	// locateCurvilinear must fall back to the averaged linear estimate
	// instead of the quadratic root.
	lon := [][]float64{{0, 1}, {0.5, 1.5}}
	lat := [][]float64{{0, 0}, {1, 1}}
	g, err := NewCurvilinearZGrid(lon, lat, []float64{0}, []float64{0}, time.Time{}, MeshFlat)
	require.NoError(t, err)

	loc, err := locateCurvilinear(g, 0.75, 0.5, -1, -1)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(loc.Xsi))
	assert.False(t, math.IsNaN(loc.Eta))
	assert.InDelta(t, 0.5, loc.Xsi, 1e-6)
	assert.InDelta(t, 0.5, loc.Eta, 1e-6)
}
