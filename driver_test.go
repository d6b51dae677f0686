package parcels

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	writes []float64
}

func (r *recordingWriter) Write(t float64, ps *ParticleSet) error {
	r.writes = append(r.writes, t)
	return nil
}
func (r *recordingWriter) Close() error { return nil }

func TestExecutionDriverTrivialRun(t *testing.T) {
	fs := steadyUniformFieldSet(t, 1.0, 1.0)
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{0}, []float64{0}, []float64{0}, 0))

	w := &recordingWriter{}
	d := &ExecutionDriver{
		FieldSet:  fs,
		Particles: ps,
		Kernel:    EulerIntegration(),
		Writer:    w,
		Dt:        0,
	}
	require.NoError(t, d.Execute(context.Background(), math.NaN(), math.NaN()))
	require.Len(t, w.writes, 1)
	require.Equal(t, 0.0, ps.At(0).Lon())
}

func TestExecutionDriverAdvectsToEndTime(t *testing.T) {
	fs := steadyUniformFieldSet(t, 2.0, 0.0)
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{0}, []float64{0}, []float64{0}, 0))

	w := &recordingWriter{}
	d := &ExecutionDriver{
		FieldSet:       fs,
		Particles:      ps,
		Kernel:         RK4Integration(),
		Writer:         w,
		Dt:             10,
		OutputInterval: 50,
	}
	require.NoError(t, d.Execute(context.Background(), math.NaN(), 100))
	require.InDelta(t, 200, ps.At(0).Lon(), 1e-6)
	require.NotEmpty(t, w.writes)
	require.InDelta(t, 100, w.writes[len(w.writes)-1], 1e-9)
}

func TestExecutionDriverRejectsRuntimeAndEndTimeTogether(t *testing.T) {
	fs := steadyUniformFieldSet(t, 1.0, 0.0)
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{0}, []float64{0}, []float64{0}, 0))
	d := &ExecutionDriver{FieldSet: fs, Particles: ps, Kernel: EulerIntegration(), Dt: 1}
	err := d.Execute(context.Background(), 10, 10)
	require.Error(t, err)
}

func TestExecutionDriverRecoveryDispatchStopsUnhandled(t *testing.T) {
	// A grid covering only a small domain so the particle quickly samples
	// out of bounds once it advects past the edge.
	lon := []float64{0, 1, 2}
	lat := []float64{0, 1, 2}
	grid, err := NewRectilinearZGrid(lon, lat, []float64{0}, []float64{0, 1}, time.Time{}, MeshFlat)
	require.NoError(t, err)
	n := 9
	data := make([]float32, 2*n)
	for i := range data {
		data[i] = 1
	}
	fs := NewFieldSet()
	_, err = fs.FromData("U", data, grid, InterpLinear, true, false, Identity{})
	require.NoError(t, err)
	_, err = fs.FromData("V", make([]float32, 2*n), grid, InterpLinear, true, false, Identity{})
	require.NoError(t, err)

	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{1.9}, []float64{1}, []float64{0}, 0))

	d := &ExecutionDriver{
		FieldSet:  fs,
		Particles: ps,
		Kernel:    EulerIntegration(),
		Dt:        1,
	}
	require.NoError(t, d.Execute(context.Background(), math.NaN(), 10))
	require.Equal(t, StateStopped, ps.At(0).State())
}
