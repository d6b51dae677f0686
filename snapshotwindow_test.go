package parcels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMember is a windowMember test double that records which (slot,
// globalIdx) pairs it was asked to load, and can be made to fail on its
// first N calls to exercise SnapshotWindow's retry path.
type recordingMember struct {
	loads     [][2]int
	failTimes int
}

func (m *recordingMember) loadSlot(_ context.Context, slot, globalIdx int) error {
	if m.failTimes > 0 {
		m.failTimes--
		return errors.New("transient fetch failure")
	}
	m.loads = append(m.loads, [2]int{slot, globalIdx})
	return nil
}
func (m *recordingMember) shiftLeft()  {}
func (m *recordingMember) shiftRight() {}

func longGrid(t *testing.T, n int) *Grid {
	t.Helper()
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = float64(i) * 10
	}
	g, err := NewRectilinearZGrid([]float64{0, 1}, []float64{0, 1}, []float64{0}, axis, time.Time{}, MeshFlat)
	require.NoError(t, err)
	return g
}

func TestSnapshotWindowInitializesAtStartForForwardRun(t *testing.T) {
	g := longGrid(t, 6)
	w := newSnapshotWindow(g)
	m := &recordingMember{}
	w.register(m)

	next, err := w.AdvanceChunk(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, w.timeInd)
	assert.Equal(t, g.Time[2], next)
	assert.Equal(t, [][2]int{{0, 0}, {1, 1}, {2, 2}}, m.loads)
}

func TestSnapshotWindowInitializesAtEndForBackwardRun(t *testing.T) {
	g := longGrid(t, 6)
	w := newSnapshotWindow(g)
	m := &recordingMember{}
	w.register(m)

	next, err := w.AdvanceChunk(context.Background(), g.Time[5], -1)
	require.NoError(t, err)
	assert.Equal(t, 3, w.timeInd)
	assert.Equal(t, g.Time[3], next)
}

func TestSnapshotWindowShiftsForwardPastChunkBoundary(t *testing.T) {
	g := longGrid(t, 6)
	w := newSnapshotWindow(g)
	m := &recordingMember{}
	w.register(m)

	_, err := w.AdvanceChunk(context.Background(), 0, 1)
	require.NoError(t, err)
	m.loads = nil

	next, err := w.AdvanceChunk(context.Background(), g.Time[1]+1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, w.timeInd)
	assert.Equal(t, g.Time[3], next)
	assert.Equal(t, [][2]int{{2, 3}}, m.loads)
}

func TestSnapshotWindowReturnsInfinityWhenAxisFitsEntirely(t *testing.T) {
	g := longGrid(t, 2)
	w := newSnapshotWindow(g)
	w.register(&recordingMember{})

	next, err := w.AdvanceChunk(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.True(t, next > 1e300)
}

func TestSnapshotWindowRetriesTransientFailure(t *testing.T) {
	g := longGrid(t, 6)
	w := newSnapshotWindow(g)
	m := &recordingMember{failTimes: 2}
	w.register(m)

	_, err := w.AdvanceChunk(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Len(t, m.loads, 3)
}
