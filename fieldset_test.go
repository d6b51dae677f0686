package parcels

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGridDeduplication(t *testing.T) {
	lon := []float64{0, 1, 2}
	lat := []float64{0, 1, 2}
	g0, err := NewRectilinearZGrid(lon, lat, []float64{0}, []float64{0, 1}, time.Time{}, MeshFlat)
	require.NoError(t, err)
	g1, err := NewRectilinearZGrid(lon, lat, []float64{0}, []float64{0, 1}, time.Time{}, MeshFlat)
	require.NoError(t, err)

	fs := NewFieldSet()
	n := 9
	data := make([]float32, 2*n)

	_, err = fs.FromData("U", data, g0, InterpLinear, true, false, Identity{})
	require.NoError(t, err)
	_, err = fs.FromData("V", data, g1, InterpLinear, true, false, Identity{})
	require.NoError(t, err)
	_, err = fs.FromData("temp", data, g0, InterpLinear, true, false, Identity{})
	require.NoError(t, err)

	grids := fs.Grids().Grids()
	require.Len(t, grids, 2)

	tempField, ok := fs.Field("temp")
	require.True(t, ok)
	require.Same(t, fs.U.Grid, tempField.Grid)
	require.NotSame(t, fs.V.Grid, fs.U.Grid)
}

// TestMultiGridTemperatureSampling checks two A-grids of different
// resolution on a shared flat domain, both sampling the same analytic
// temperature field: both must agree at a shared query point.
func TestMultiGridTemperatureSampling(t *testing.T) {
	build := func(n int) *Grid {
		lon := make([]float64, n)
		lat := make([]float64, n)
		for i := 0; i < n; i++ {
			lon[i] = float64(i) * 10000 / float64(n-1)
			lat[i] = float64(i) * 10000 / float64(n-1)
		}
		g, err := NewRectilinearZGrid(lon, lat, []float64{0}, []float64{0, 1}, time.Time{}, MeshFlat)
		require.NoError(t, err)
		return g
	}
	temperature := func(lon, lat float64) float64 {
		return 20 + lat/1000 + 2*math.Sin(2*math.Pi*lon/5000)
	}
	fill := func(g *Grid) []float32 {
		data := make([]float32, 2*g.Xdim*g.Ydim)
		for ti := 0; ti < 2; ti++ {
			for yi := 0; yi < g.Ydim; yi++ {
				for xi := 0; xi < g.Xdim; xi++ {
					v := temperature(g.Lon.Get(xi), g.Lat.Get(yi))
					data[(ti*g.Ydim+yi)*g.Xdim+xi] = float32(v)
				}
			}
		}
		return data
	}

	g201 := build(201)
	g51 := build(51)

	fs := NewFieldSet()
	f0, err := fs.FromData("temp0", fill(g201), g201, InterpLinear, true, false, Identity{})
	require.NoError(t, err)
	f1, err := fs.FromData("temp1", fill(g51), g51, InterpLinear, true, false, Identity{})
	require.NoError(t, err)

	v0, err := f0.Eval(context.Background(), 0, 3001, 5001, 0, false)
	require.NoError(t, err)
	v1, err := f1.Eval(context.Background(), 0, 3001, 5001, 0, false)
	require.NoError(t, err)
	require.InDelta(t, v0, v1, 1e-3)
}
