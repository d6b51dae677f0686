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
	"fmt"
	"math"
)

// InterpMethod selects how Field.Eval blends surrounding grid values.
type InterpMethod int

const (
	InterpLinear InterpMethod = iota
	InterpNearest
)

// Field is a named 4-D array (t,z,y,x) bound to a Grid, with an
// interpolation method, clamp/extrapolation policy, and a UnitConverter.
type Field struct {
	Name                   string
	Grid                   *Grid
	Interp                 InterpMethod
	AllowTimeExtrapolation bool
	TimePeriodic           bool
	Units                  UnitConverter

	// fieldSet is a weak, non-owning back-reference used only during UV
	// synthesis.
	fieldSet *FieldSet

	window   *SnapshotWindow
	provider SnapshotProvider
	zdim, ydim, xdim int
	slots    [3][]float32

	hintXi, hintYi int
}

// NewField constructs a Field bound to grid, registering it with gs's
// SnapshotWindow for that grid. units may be nil, in which case it is
// auto-assigned from name and grid.Mesh.
func NewField(name string, provider SnapshotProvider, grid *Grid, interp InterpMethod, allowExtrapolation, periodic bool, units UnitConverter, gs *GridSet) (*Field, error) {
	if periodic && allowExtrapolation {
		return nil, fmt.Errorf("parcels: field %q cannot be both time_periodic and allow_time_extrapolation", name)
	}
	tFull, z, y, x := provider.Shape()
	if tFull != len(grid.Time) {
		return nil, fmt.Errorf("parcels: field %q provider has %d time steps but grid has %d", name, tFull, len(grid.Time))
	}
	if units == nil {
		units = unitConverterForField(name, grid.Mesh)
	}
	f := &Field{
		Name:                   name,
		Grid:                   grid,
		Interp:                 interp,
		AllowTimeExtrapolation: allowExtrapolation,
		TimePeriodic:           periodic,
		Units:                  units,
		provider:               provider,
		zdim:                   z,
		ydim:                   y,
		xdim:                   x,
		hintXi:                 -1,
		hintYi:                 -1,
	}
	f.window = gs.Add(grid)
	f.window.register(f)
	return f, nil
}

func (f *Field) loadSlot(ctx context.Context, slot, globalIdx int) error {
	data, err := f.provider.Fetch(ctx, globalIdx)
	if err != nil {
		return err
	}
	f.slots[slot] = data
	return nil
}

func (f *Field) shiftLeft()  { f.slots[0], f.slots[1] = f.slots[1], f.slots[2] }
func (f *Field) shiftRight() { f.slots[2], f.slots[1] = f.slots[1], f.slots[0] }

func (f *Field) at(slot, z, y, x int) float64 {
	idx := (z*f.ydim+y)*f.xdim + x
	return float64(f.slots[slot][idx])
}

// timeIndex returns the global index into Grid.Time bracketing t (t_idx such that Time[t_idx] <= t),
// the integer number of periods folded out of t for a periodic field,
// and an error if extrapolation would be required but is disallowed.
func (f *Field) timeIndex(t float64) (tIdx, periods int, err error) {
	T := f.Grid.Time
	first, last := T[0], T[len(T)-1]
	if f.TimePeriodic && last > first {
		period := last - first
		for t < first {
			t += period
			periods--
		}
		for t >= last {
			t -= period
			periods++
		}
	} else if !f.AllowTimeExtrapolation && (t < first || t > last) {
		return 0, 0, ErrTimeExtrapolation
	} else if t > last {
		return len(T) - 1, 0, nil
	}
	return bisectIndexLE(T, t), periods, nil
}

// bisectIndexLE returns the largest index i with axis[i] <= q, clamped to
// len(axis)-1.
func bisectIndexLE(axis []float64, q float64) int {
	idx := 0
	for i, v := range axis {
		if v <= q {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// Eval samples the field at (t,x,y,z), blending across the time window
// and, if applyUnits is set, converting through Units.
func (f *Field) Eval(ctx context.Context, t, x, y, z float64, applyUnits bool) (float64, error) {
	if f.window.timeInd < 0 {
		if _, err := f.window.AdvanceChunk(ctx, t, 1); err != nil {
			return 0, err
		}
	}
	tIdx, periods, err := f.timeIndex(t)
	if err != nil {
		return 0, err
	}
	T := f.Grid.Time
	if periods != 0 {
		t -= float64(periods) * (T[len(T)-1] - T[0])
	}
	localIdx := tIdx - f.window.timeInd
	if localIdx < 0 || localIdx > 2 {
		return 0, fatalf("field %s: time index %d outside materialized window [%d,%d]",
			f.Name, tIdx, f.window.timeInd, f.window.timeInd+2)
	}

	var timeFrac float64
	if tIdx < len(T)-1 {
		timeFrac = (t - T[tIdx]) / (T[tIdx+1] - T[tIdx])
	}

	var val float64
	if tIdx < len(T)-1 && t > T[tIdx] && localIdx < 2 {
		f0, loc, err := f.spatialSample(localIdx, x, y, z, tIdx, timeFrac)
		if err != nil {
			return 0, err
		}
		f1, _, err := f.spatialSample(localIdx+1, x, y, z, tIdx, timeFrac)
		if err != nil {
			return 0, err
		}
		val = f0 + (f1-f0)*timeFrac
		f.hintXi, f.hintYi = loc.Xi, loc.Yi
	} else {
		v, loc, err := f.spatialSample(localIdx, x, y, z, tIdx, timeFrac)
		if err != nil {
			return 0, err
		}
		val = v
		f.hintXi, f.hintYi = loc.Xi, loc.Yi
	}
	if applyUnits {
		val = f.Units.ToTarget(val, x, y, z)
	}
	return val, nil
}

// spatialSample dispatches on grid variant.
func (f *Field) spatialSample(slot int, x, y, z float64, tidxGlobal int, timeFrac float64) (float64, CellLocation, error) {
	loc, err := locateCell(f.Grid, x, y, z, f.hintXi, f.hintYi, tidxGlobal, timeFrac)
	if err != nil {
		return 0, CellLocation{}, err
	}
	if f.Interp == InterpNearest {
		xi, yi, zi := loc.Xi, loc.Yi, loc.Zi
		if loc.Xsi > 0.5 {
			xi++
		}
		if loc.Eta > 0.5 {
			yi++
		}
		if loc.Zeta > 0.5 {
			zi++
		}
		return f.at(slot, zi, yi, xi), loc, nil
	}
	v0 := bilinear(f.at(slot, loc.Zi, loc.Yi, loc.Xi), f.at(slot, loc.Zi, loc.Yi, loc.Xi+1),
		f.at(slot, loc.Zi, loc.Yi+1, loc.Xi+1), f.at(slot, loc.Zi, loc.Yi+1, loc.Xi), loc.Xsi, loc.Eta)
	if f.zdim <= 1 {
		return v0, loc, nil
	}
	v1 := bilinear(f.at(slot, loc.Zi+1, loc.Yi, loc.Xi), f.at(slot, loc.Zi+1, loc.Yi, loc.Xi+1),
		f.at(slot, loc.Zi+1, loc.Yi+1, loc.Xi+1), f.at(slot, loc.Zi+1, loc.Yi+1, loc.Xi), loc.Xsi, loc.Eta)
	return v0 + (v1-v0)*loc.Zeta, loc, nil
}

const earthRadius = 6.371e6 // metres

// Gradient produces two Fields, name+"_dx" and name+"_dy", via central
// differences on longitude/latitude (forward/backward at the domain
// edges). It only supports RectilinearZ grids holding the
// full time axis resident (the common case for a derived diagnostic
// field computed once from a materialized field).
func (f *Field) Gradient(gs *GridSet) (*Field, *Field, error) {
	if f.Grid.Kind != RectilinearZ {
		return nil, nil, fmt.Errorf("parcels: Gradient is only implemented for RectilinearZ grids")
	}
	g := f.Grid
	tFull, z, y, x := f.provider.Shape()
	dx := make([]float32, tFull*z*y*x)
	dy := make([]float32, tFull*z*y*x)

	lon := make([]float64, x)
	for i := range lon {
		lon[i] = g.Lon.Get(i)
	}
	lat := make([]float64, y)
	for j := range lat {
		lat[j] = g.Lat.Get(j)
	}

	for ti := 0; ti < tFull; ti++ {
		slice, err := f.provider.Fetch(context.Background(), ti)
		if err != nil {
			return nil, nil, err
		}
		idx := func(zi, yi, xi int) int { return (zi*y+yi)*x + xi }
		for zi := 0; zi < z; zi++ {
			for yi := 0; yi < y; yi++ {
				dyM := earthRadius * (math.Pi / 180)
				for xi := 0; xi < x; xi++ {
					dxM := earthRadius * math.Cos(lat[yi]*math.Pi/180) * (math.Pi / 180)
					var ddx, ddy float64
					switch {
					case xi == 0:
						ddx = (float64(slice[idx(zi, yi, xi+1)]) - float64(slice[idx(zi, yi, xi)])) / ((lon[xi+1] - lon[xi]) * dxM)
					case xi == x-1:
						ddx = (float64(slice[idx(zi, yi, xi)]) - float64(slice[idx(zi, yi, xi-1)])) / ((lon[xi] - lon[xi-1]) * dxM)
					default:
						ddx = (float64(slice[idx(zi, yi, xi+1)]) - float64(slice[idx(zi, yi, xi-1)])) / ((lon[xi+1] - lon[xi-1]) * dxM)
					}
					switch {
					case yi == 0:
						ddy = (float64(slice[idx(zi, yi+1, xi)]) - float64(slice[idx(zi, yi, xi)])) / ((lat[yi+1] - lat[yi]) * dyM)
					case yi == y-1:
						ddy = (float64(slice[idx(zi, yi, xi)]) - float64(slice[idx(zi, yi-1, xi)])) / ((lat[yi] - lat[yi-1]) * dyM)
					default:
						ddy = (float64(slice[idx(zi, yi+1, xi)]) - float64(slice[idx(zi, yi-1, xi)])) / ((lat[yi+1] - lat[yi-1]) * dyM)
					}
					offset := ti*z*y*x + idx(zi, yi, xi)
					dx[offset] = float32(ddx)
					dy[offset] = float32(ddy)
				}
			}
		}
	}

	fx, err := NewField(f.Name+"_dx", &memoryProvider{tFull: tFull, z: z, y: y, x: x, data: dx}, g, f.Interp, f.AllowTimeExtrapolation, f.TimePeriodic, Identity{}, gs)
	if err != nil {
		return nil, nil, err
	}
	fy, err := NewField(f.Name+"_dy", &memoryProvider{tFull: tFull, z: z, y: y, x: x, data: dy}, g, f.Interp, f.AllowTimeExtrapolation, f.TimePeriodic, Identity{}, gs)
	if err != nil {
		return nil, nil, err
	}
	return fx, fy, nil
}
