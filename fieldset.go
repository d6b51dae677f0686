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

	"bitbucket.org/ctessum/sparse"
)

// FieldSet is an ordered collection of Fields plus the derived vector
// field UV. U and V are required; cosU/sinU/cosV/sinV are
// required iff U's grid is curvilinear.
type FieldSet struct {
	U, V                   *Field
	CosU, SinU, CosV, SinV *Field

	names  []string
	fields map[string]*Field

	grids *GridSet
}

// NewFieldSet constructs an empty FieldSet.
func NewFieldSet() *FieldSet {
	return &FieldSet{fields: make(map[string]*Field), grids: NewGridSet()}
}

// Grids exposes the deduplicated GridSet backing this FieldSet.
func (fs *FieldSet) Grids() *GridSet { return fs.grids }

// AddField registers a field under its own Name. U and V are special-cased
// into the dedicated fields; rotation fields are recognised by name.
func (fs *FieldSet) AddField(f *Field) error {
	if _, exists := fs.fields[f.Name]; exists {
		return fmt.Errorf("parcels: field %q already registered", f.Name)
	}
	f.fieldSet = fs
	fs.fields[f.Name] = f
	fs.names = append(fs.names, f.Name)
	switch f.Name {
	case "U":
		fs.U = f
	case "V":
		fs.V = f
	case "cosU":
		fs.CosU = f
	case "sinU":
		fs.SinU = f
	case "cosV":
		fs.CosV = f
	case "sinV":
		fs.SinV = f
	}
	return nil
}

// Field looks up a named field, "UV" included (UV is synthetic: this
// accessor returns nil for it, use SampleUV instead).
func (fs *FieldSet) Field(name string) (*Field, bool) {
	f, ok := fs.fields[name]
	return f, ok
}

// FromData builds a Field entirely from in-memory data, registering it with this FieldSet's GridSet.
func (fs *FieldSet) FromData(name string, data []float32, grid *Grid, interp InterpMethod, allowExtrapolation, periodic bool, units UnitConverter) (*Field, error) {
	tFull := len(grid.Time)
	n := grid.Zdim * grid.Ydim * grid.Xdim
	if len(data) != tFull*n {
		return nil, fmt.Errorf("parcels: field %q data has %d elements, want %d", name, len(data), tFull*n)
	}
	provider := &memoryProvider{tFull: tFull, z: grid.Zdim, y: grid.Ydim, x: grid.Xdim, data: data}
	f, err := NewField(name, provider, grid, interp, allowExtrapolation, periodic, units, fs.grids)
	if err != nil {
		return nil, err
	}
	if err := fs.AddField(f); err != nil {
		return nil, err
	}
	return f, nil
}

// requiresRotation reports whether U's grid needs the cosU/sinU/cosV/sinV
// rotation fields to synthesize UV.
func (fs *FieldSet) requiresRotation() bool {
	return fs.U != nil && fs.U.Grid.curvilinear()
}

// SampleUV evaluates the derived UV vector field at (time,x,y,z): on a
// rectilinear U-grid it is simply (U,V) with units applied; on a
// curvilinear U-grid it is rotated by the cosU/sinU/cosV/sinV fields.
func (fs *FieldSet) SampleUV(ctx context.Context, t, x, y, z float64) (u, v float64, err error) {
	if fs.U == nil || fs.V == nil {
		return 0, 0, fmt.Errorf("parcels: fieldset has no U/V fields")
	}
	uRaw, err := fs.U.Eval(ctx, t, x, y, z, false)
	if err != nil {
		return 0, 0, err
	}
	vRaw, err := fs.V.Eval(ctx, t, x, y, z, false)
	if err != nil {
		return 0, 0, err
	}
	if !fs.requiresRotation() {
		return fs.U.Units.ToTarget(uRaw, x, y, z), fs.V.Units.ToTarget(vRaw, x, y, z), nil
	}
	if fs.CosU == nil || fs.SinU == nil || fs.CosV == nil || fs.SinV == nil {
		return 0, 0, fmt.Errorf("parcels: curvilinear U grid requires cosU/sinU/cosV/sinV fields")
	}
	cosU, err := fs.CosU.Eval(ctx, t, x, y, z, false)
	if err != nil {
		return 0, 0, err
	}
	sinU, err := fs.SinU.Eval(ctx, t, x, y, z, false)
	if err != nil {
		return 0, 0, err
	}
	cosV, err := fs.CosV.Eval(ctx, t, x, y, z, false)
	if err != nil {
		return 0, 0, err
	}
	sinV, err := fs.SinV.Eval(ctx, t, x, y, z, false)
	if err != nil {
		return 0, 0, err
	}
	u = uRaw*cosU - vRaw*sinV
	v = uRaw*sinU + vRaw*cosV
	return fs.U.Units.ToTarget(u, x, y, z), fs.V.Units.ToTarget(v, x, y, z), nil
}

// Sample evaluates an arbitrary named field.
func (fs *FieldSet) Sample(ctx context.Context, name string, t, x, y, z float64) (float64, error) {
	f, ok := fs.fields[name]
	if !ok {
		return 0, fmt.Errorf("parcels: no such field %q", name)
	}
	return f.Eval(ctx, t, x, y, z, true)
}

// Gradient computes and registers the name+"_dx"/name+"_dy" fields for an
// existing named field.
func (fs *FieldSet) Gradient(name string) (dx, dy *Field, err error) {
	f, ok := fs.fields[name]
	if !ok {
		return nil, nil, fmt.Errorf("parcels: no such field %q", name)
	}
	dx, dy, err = f.Gradient(fs.grids)
	if err != nil {
		return nil, nil, err
	}
	if err := fs.AddField(dx); err != nil {
		return nil, nil, err
	}
	if err := fs.AddField(dy); err != nil {
		return nil, nil, err
	}
	return dx, dy, nil
}

// AdvanceChunks advances every grid's SnapshotWindow and returns the
// earliest (signDt>0) or latest (signDt<0) next-chunk-boundary time
// across all grids, as the ExecutionDriver needs.
func (fs *FieldSet) AdvanceChunks(ctx context.Context, currentTime float64, signDt int) (float64, error) {
	var next float64
	first := true
	for _, w := range fs.grids.Windows() {
		nt, err := w.AdvanceChunk(ctx, currentTime, signDt)
		if err != nil {
			return 0, err
		}
		if first {
			next = nt
			first = false
			continue
		}
		if signDt >= 0 {
			if nt < next {
				next = nt
			}
		} else if nt > next {
			next = nt
		}
	}
	return next, nil
}

// AddPeriodicHalo extends every field registered on fs by copying
// haloSize rows/columns from each boundary to the opposite side along the
// requested axis, and extends the grid's lon/lat axes correspondingly.
// It returns an error for curvilinear grids. For a RectilinearS grid only
// the lon/lat axes and field data are extended; its per-column depth array
// keeps its original shape. Applying it twice doubles the halo.
func (fs *FieldSet) AddPeriodicHalo(zonal, meridional bool, haloSize int) error {
	if haloSize <= 0 {
		return fmt.Errorf("parcels: haloSize must be positive")
	}
	seen := make(map[*Grid]bool)
	for _, name := range fs.names {
		f := fs.fields[name]
		if f.Grid.curvilinear() {
			return fmt.Errorf("parcels: AddPeriodicHalo is only implemented for rectilinear grids")
		}
		if err := addHaloToField(f, zonal, meridional, haloSize); err != nil {
			return err
		}
		if !seen[f.Grid] {
			addHaloToAxes(f.Grid, zonal, meridional, haloSize)
			seen[f.Grid] = true
		}
	}
	return nil
}

func addHaloToAxes(g *Grid, zonal, meridional bool, halo int) {
	if zonal {
		g.Lon = haloExtend1D(g.Lon, halo, g.Xdim)
		g.Xdim += 2 * halo
	}
	if meridional {
		g.Lat = haloExtend1D(g.Lat, halo, g.Ydim)
		g.Ydim += 2 * halo
	}
}

func addHaloToField(f *Field, zonal, meridional bool, halo int) error {
	mp, ok := f.provider.(*memoryProvider)
	if !ok {
		return fmt.Errorf("parcels: field %q: AddPeriodicHalo requires an in-memory provider", f.Name)
	}
	newX, newY := mp.x, mp.y
	if zonal {
		newX += 2 * halo
	}
	if meridional {
		newY += 2 * halo
	}
	out := make([]float32, mp.tFull*mp.z*newY*newX)
	srcIdx := func(t, z, y, x int) int { return ((t*mp.z+z)*mp.y+y)*mp.x + x }
	dstIdx := func(t, z, y, x int) int { return ((t*mp.z+z)*newY+y)*newX + x }
	for t := 0; t < mp.tFull; t++ {
		for z := 0; z < mp.z; z++ {
			for y := 0; y < mp.y; y++ {
				dy := y
				if meridional {
					dy += halo
				}
				for x := 0; x < mp.x; x++ {
					dx := x
					if zonal {
						dx += halo
					}
					out[dstIdx(t, z, dy, dx)] = mp.data[srcIdx(t, z, y, x)]
				}
			}
		}
	}
	if zonal {
		for t := 0; t < mp.tFull; t++ {
			for z := 0; z < mp.z; z++ {
				for y := 0; y < newY; y++ {
					for i := 0; i < halo; i++ {
						out[dstIdx(t, z, y, i)] = out[dstIdx(t, z, y, i+mp.x)]
						out[dstIdx(t, z, y, i+mp.x+halo)] = out[dstIdx(t, z, y, i+halo)]
					}
				}
			}
		}
	}
	if meridional {
		for t := 0; t < mp.tFull; t++ {
			for z := 0; z < mp.z; z++ {
				for x := 0; x < newX; x++ {
					for i := 0; i < halo; i++ {
						out[dstIdx(t, z, i, x)] = out[dstIdx(t, z, i+mp.y, x)]
						out[dstIdx(t, z, i+mp.y+halo, x)] = out[dstIdx(t, z, i+halo, x)]
					}
				}
			}
		}
	}
	f.provider = &memoryProvider{tFull: mp.tFull, z: mp.z, y: newY, x: newX, data: out}
	f.ydim, f.xdim = newY, newX
	return nil
}

// haloExtend1D extends a strictly monotone 1-D coordinate axis by halo
// samples on each side, continuing the axis's spacing at each end so the
// extended axis stays strictly monotone.
func haloExtend1D(d *sparse.DenseArray, halo, n int) *sparse.DenseArray {
	step := d.Get(1) - d.Get(0)
	out := sparse.ZerosDense(n + 2*halo)
	for i := 0; i < n; i++ {
		out.Set(d.Get(i), i+halo)
	}
	for i := 1; i <= halo; i++ {
		out.Set(d.Get(0)-step*float64(i), halo-i)
		out.Set(d.Get(n-1)+step*float64(i), n+halo-1+i)
	}
	return out
}
