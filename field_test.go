package parcels

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTimePeriodicIdentity checks that a field declared time_periodic
// samples identically at t and t+period.
func TestTimePeriodicIdentity(t *testing.T) {
	lon := []float64{0, 1, 2}
	lat := []float64{0, 1, 2}
	grid, err := NewRectilinearZGrid(lon, lat, []float64{0}, []float64{0, 10, 20}, time.Time{}, MeshFlat)
	require.NoError(t, err)

	n := 9
	data := make([]float32, 3*n)
	for ti := 0; ti < 3; ti++ {
		for i := 0; i < n; i++ {
			data[ti*n+i] = float32(ti*100 + i)
		}
	}
	fs := NewFieldSet()
	f, err := fs.FromData("temp", data, grid, InterpLinear, false, true, Identity{})
	require.NoError(t, err)

	v1, err := f.Eval(context.Background(), 5, 1, 1, 0, false)
	require.NoError(t, err)
	v2, err := f.Eval(context.Background(), 25, 1, 1, 0, false)
	require.NoError(t, err)
	assert.InDelta(t, v1, v2, 1e-9)
}

func TestTimeIndexRejectsExtrapolationWhenDisallowed(t *testing.T) {
	lon := []float64{0, 1}
	lat := []float64{0, 1}
	grid, err := NewRectilinearZGrid(lon, lat, []float64{0}, []float64{0, 10}, time.Time{}, MeshFlat)
	require.NoError(t, err)
	fs := NewFieldSet()
	f, err := fs.FromData("temp", make([]float32, 2*4), grid, InterpLinear, false, false, Identity{})
	require.NoError(t, err)

	_, err = f.Eval(context.Background(), 50, 0.5, 0.5, 0, false)
	require.ErrorIs(t, err, ErrTimeExtrapolation)
}

// TestGradientCentralDifference checks that Field.Gradient's interior
// central difference yields a positive x-derivative for a field that
// increases linearly with longitude.
func TestGradientCentralDifference(t *testing.T) {
	lon := []float64{0, 1, 2, 3}
	lat := []float64{0, 1, 2}
	grid, err := NewRectilinearZGrid(lon, lat, []float64{0}, []float64{0}, time.Time{}, MeshFlat)
	require.NoError(t, err)

	data := make([]float32, len(lon)*len(lat))
	for yi := range lat {
		for xi := range lon {
			data[yi*len(lon)+xi] = float32(3 * lon[xi])
		}
	}
	fs := NewFieldSet()
	f, err := fs.FromData("h", data, grid, InterpLinear, false, false, Identity{})
	require.NoError(t, err)

	dx, _, err := fs.Gradient("h")
	require.NoError(t, err)

	v, err := dx.Eval(context.Background(), 0, 1, 1, 0, false)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
}
