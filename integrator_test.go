package parcels

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// steadyUniformFieldSet builds a flat-mesh FieldSet with constant U, V
// covering a generous domain, for the "RK4 order" testable property
//: on a steady uniform flow, after time T the particle position
// must match (x0+u*T, y0+v*T) exactly.
func steadyUniformFieldSet(t *testing.T, u, v float64) *FieldSet {
	t.Helper()
	lon := []float64{-1000, 0, 1000, 2000, 3000}
	lat := []float64{-1000, 0, 1000, 2000, 3000}
	depth := []float64{0}
	grid, err := NewRectilinearZGrid(lon, lat, depth, []float64{0, 100000}, time.Time{}, MeshFlat)
	require.NoError(t, err)

	n := len(lon) * len(lat)
	udata := make([]float32, 2*n)
	vdata := make([]float32, 2*n)
	for i := range udata {
		udata[i] = float32(u)
		vdata[i] = float32(v)
	}

	fs := NewFieldSet()
	_, err = fs.FromData("U", udata, grid, InterpLinear, true, false, Identity{})
	require.NoError(t, err)
	_, err = fs.FromData("V", vdata, grid, InterpLinear, true, false, Identity{})
	require.NoError(t, err)
	return fs
}

func TestRK4OrderExactOnSteadyUniformFlow(t *testing.T) {
	fs := steadyUniformFieldSet(t, 2.0, -1.5)
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{500}, []float64{500}, []float64{0}, 0))

	kernel := RK4Integration()
	p := ps.At(0)
	dt := 10.0
	steps := 20
	for i := 0; i < steps; i++ {
		status := kernel(context.Background(), p, fs, p.Time(), dt)
		require.Equal(t, StatusSuccess, status)
		p.SetTime(p.Time() + dt)
	}

	T := float64(steps) * dt
	require.InDelta(t, 500+2.0*T, p.Lon(), 1e-9)
	require.InDelta(t, 500-1.5*T, p.Lat(), 1e-9)
}

func TestEulerIntegrationMatchesUniformFlow(t *testing.T) {
	fs := steadyUniformFieldSet(t, 1.0, 1.0)
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{0}, []float64{0}, []float64{0}, 0))
	p := ps.At(0)
	kernel := EulerIntegration()
	status := kernel(context.Background(), p, fs, 0, 5)
	require.Equal(t, StatusSuccess, status)
	require.InDelta(t, 5, p.Lon(), 1e-9)
	require.InDelta(t, 5, p.Lat(), 1e-9)
}

func TestAdaptiveRK45AcceptsOnSteadyFlow(t *testing.T) {
	fs := steadyUniformFieldSet(t, 1.0, 0.0)
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{0}, []float64{0}, []float64{0}, 0))
	p := ps.At(0)
	p.SetDt(1.0)
	kernel := AdaptiveRK45Integration()
	status := kernel(context.Background(), p, fs, 0, p.Dt())
	require.Equal(t, StatusSuccess, status)
	require.InDelta(t, 1.0, p.Lon(), 1e-6)
}
