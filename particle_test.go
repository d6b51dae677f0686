package parcels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticleSetFromList(t *testing.T) {
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{1, 2}, []float64{3, 4}, []float64{0, 0}, 100))
	require.Equal(t, 2, ps.Size())
	assert.Equal(t, int64(0), ps.At(0).ID())
	assert.Equal(t, int64(1), ps.At(1).ID())
	assert.Equal(t, 100.0, ps.At(0).Time())
}

func TestParticleSetFromLineEndpointsInclusive(t *testing.T) {
	ps := NewParticleSet()
	require.NoError(t, ps.FromLine(0, 0, 0, 10, 20, 0, 3, 0))
	require.Equal(t, 3, ps.Size())
	assert.InDelta(t, 0, ps.At(0).Lon(), 1e-9)
	assert.InDelta(t, 5, ps.At(1).Lon(), 1e-9)
	assert.InDelta(t, 10, ps.At(2).Lon(), 1e-9)
	assert.InDelta(t, 20, ps.At(2).Lat(), 1e-9)
}

func TestParticleSetCompactDeletedLeavesIDGaps(t *testing.T) {
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{1, 2, 3}, []float64{0, 0, 0}, []float64{0, 0, 0}, 0))
	ps.At(1).SetState(StateDeleted)
	ps.CompactDeleted()
	require.Equal(t, 2, ps.Size())
	assert.Equal(t, int64(0), ps.At(0).ID())
	assert.Equal(t, int64(2), ps.At(1).ID())
	assert.Equal(t, int64(2), ps.MaxID())
}

func TestParticleSetReleaseCohort(t *testing.T) {
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{1, 2}, []float64{3, 4}, []float64{0, 0}, 0))
	n := ps.ReleaseCohort(500)
	assert.Equal(t, 2, n)
	require.Equal(t, 4, ps.Size())
	assert.Equal(t, 500.0, ps.At(2).Time())
	assert.Equal(t, ps.At(0).Lon(), ps.At(2).Lon())
}

// TestParticleSetReleaseCohortStaysConstantSize guards against cohort size
// growing on repeated calls: every tick must replay the original seed
// positions, not the positions of particles injected by earlier cohorts.
func TestParticleSetReleaseCohortStaysConstantSize(t *testing.T) {
	ps := NewParticleSet()
	require.NoError(t, ps.FromList([]float64{1, 2}, []float64{3, 4}, []float64{0, 0}, 0))
	n1 := ps.ReleaseCohort(500)
	n2 := ps.ReleaseCohort(1000)
	n3 := ps.ReleaseCohort(1500)
	assert.Equal(t, 2, n1)
	assert.Equal(t, 2, n2)
	assert.Equal(t, 2, n3)
	assert.Equal(t, 8, ps.Size())
}

func TestUserVarsInitializeAndPersist(t *testing.T) {
	ps := NewParticleSet(UserVarSpec{Name: "age", Initial: 0, Persistence: PersistencePerWrite})
	require.NoError(t, ps.FromList([]float64{1}, []float64{1}, []float64{0}, 0))
	assert.Equal(t, 0.0, ps.At(0).Var("age"))
	ps.At(0).SetVar("age", 42)
	assert.Equal(t, 42.0, ps.At(0).Var("age"))
}
