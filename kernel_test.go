package parcels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpressionKernelDeletesOnTrue(t *testing.T) {
	k, err := ExpressionKernel("depth > 1000")
	require.NoError(t, err)

	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{0, 0}, []float64{0, 0}, []float64{500, 1500}, 0))

	require.Equal(t, StatusSuccess, k(context.Background(), ps.At(0), nil, 0, 1))
	require.Equal(t, StatusDelete, k(context.Background(), ps.At(1), nil, 0, 1))
}

func TestComposeStopsAtFirstNonSuccess(t *testing.T) {
	calls := 0
	always := func(status KernelStatus) Kernel {
		return func(ctx context.Context, p Particle, fs *FieldSet, time, dt float64) KernelStatus {
			calls++
			return status
		}
	}
	k := Compose(always(StatusSuccess), always(StatusDelete), always(StatusSuccess))
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{0}, []float64{0}, []float64{0}, 0))
	status := k(context.Background(), ps.At(0), nil, 0, 1)
	require.Equal(t, StatusDelete, status)
	require.Equal(t, 2, calls)
}
