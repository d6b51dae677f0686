/*
Copyright © 2013 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/
package parcels

import (
	"context"
	"math"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// SnapshotProvider is the lazy backing-array capability consumed by one
// Field. Fetch returns the (Z,Y,X) slice at
// the given index of the provider's full time axis.
type SnapshotProvider interface {
	// Shape returns (Tfull, Z, Y, X).
	Shape() (int, int, int, int)
	Fetch(ctx context.Context, tIndex int) ([]float32, error)
}

// memoryProvider is a SnapshotProvider over data already resident in
// memory; it is what FieldSet.FromData builds, and it is also what backs
// the trivial "backing not in use" case of SnapshotWindow.
type memoryProvider struct {
	tFull, z, y, x int
	data           []float32 // [T,Z,Y,X] row-major
}

func (p *memoryProvider) Shape() (int, int, int, int) { return p.tFull, p.z, p.y, p.x }

func (p *memoryProvider) Fetch(_ context.Context, t int) ([]float32, error) {
	n := p.z * p.y * p.x
	return p.data[t*n : (t+1)*n], nil
}

// windowMember is the per-Field side of a SnapshotWindow: it owns the
// 3-slot materialised array and knows how to pull a slice from its own
// SnapshotProvider.
type windowMember interface {
	loadSlot(ctx context.Context, slot, globalIdx int) error
	shiftLeft()
	shiftRight()
}

// SnapshotWindow slides a three-slice time window over a lazy backing
// array for one Grid, shared by every Field declared against that grid
//. The window schedules *when* to shift (driven by the
// grid's time axis); each member Field supplies *what* data appears in
// the shifted slot.
type SnapshotWindow struct {
	grid    *Grid
	timeInd int // index into grid.Time of the slice currently in slot 0; -1 = uninitialized
	static  bool
	members []windowMember

	retry backoff.BackOff
}

func newSnapshotWindow(g *Grid) *SnapshotWindow {
	return &SnapshotWindow{grid: g, timeInd: -1, retry: backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)}
}

func (w *SnapshotWindow) register(m windowMember) {
	w.members = append(w.members, m)
}

// visibleTime returns the grid time at the given window slot (0,1,2).
func (w *SnapshotWindow) visibleTime(slot int) float64 {
	return w.grid.Time[w.timeInd+slot]
}

// inUse reports whether the grid's time axis needs more than the window
// can hold in one go.
func (w *SnapshotWindow) inUse() bool {
	return len(w.grid.Time) > 3
}

// AdvanceChunk slides the window forward or backward as needed. currentTime
// is the simulation time driving the advance; signDt is +1 for forward, -1 for backward
// integration. It returns the next chunk-boundary time (±infinity when
// the whole axis already fits in the window).
func (w *SnapshotWindow) AdvanceChunk(ctx context.Context, currentTime float64, signDt int) (float64, error) {
	fullLen := len(w.grid.Time)
	if !w.inUse() {
		if w.timeInd < 0 {
			w.timeInd = 0
			if err := w.loadAll(ctx); err != nil {
				return 0, err
			}
		}
		return math.Inf(signDt), nil
	}

	if w.timeInd < 0 {
		if signDt >= 0 {
			w.timeInd = 0
		} else {
			w.timeInd = fullLen - 3
		}
		if err := w.loadAll(ctx); err != nil {
			return 0, err
		}
		if signDt >= 0 {
			return w.visibleTime(2), nil
		}
		return w.visibleTime(0), nil
	}

	if signDt >= 0 && currentTime > w.visibleTime(1) && w.timeInd < fullLen-3 {
		if err := w.shift(ctx, true); err != nil {
			return 0, err
		}
	} else if signDt < 0 && currentTime < w.visibleTime(1) && w.timeInd > 0 {
		if err := w.shift(ctx, false); err != nil {
			return 0, err
		}
	}

	if signDt >= 0 {
		if w.timeInd >= fullLen-3 {
			return math.Inf(1), nil
		}
		return w.visibleTime(2), nil
	}
	if w.timeInd <= 0 {
		return math.Inf(-1), nil
	}
	return w.visibleTime(0), nil
}

func (w *SnapshotWindow) loadAll(ctx context.Context) error {
	for slot := 0; slot < 3; slot++ {
		idx := w.timeInd + slot
		if idx < 0 || idx >= len(w.grid.Time) {
			continue
		}
		for _, m := range w.members {
			if err := w.fetchWithRetry(ctx, m, slot, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *SnapshotWindow) shift(ctx context.Context, forward bool) error {
	for _, m := range w.members {
		if forward {
			m.shiftLeft()
		} else {
			m.shiftRight()
		}
	}
	if forward {
		w.timeInd++
		idx := w.timeInd + 2
		for _, m := range w.members {
			if err := w.fetchWithRetry(ctx, m, 2, idx); err != nil {
				return err
			}
		}
	} else {
		w.timeInd--
		idx := w.timeInd
		for _, m := range w.members {
			if err := w.fetchWithRetry(ctx, m, 0, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *SnapshotWindow) fetchWithRetry(ctx context.Context, m windowMember, slot, idx int) error {
	w.retry.Reset()
	return backoff.Retry(func() error {
		err := m.loadSlot(ctx, slot, idx)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"slot": slot, "index": idx}).
				Warn("parcels: snapshot fetch failed, retrying")
		}
		return err
	}, w.retry)
}
