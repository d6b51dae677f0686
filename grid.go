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
	"fmt"
	"math"
	"sync"
	"time"

	"bitbucket.org/ctessum/sparse"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// MeshKind distinguishes flat Cartesian metres from spherical degrees.
type MeshKind int

const (
	MeshFlat MeshKind = iota
	MeshSpherical
)

func (m MeshKind) String() string {
	if m == MeshSpherical {
		return "spherical"
	}
	return "flat"
}

// GridKind is the tagged variant discriminator for Grid.
type GridKind int

const (
	RectilinearZ GridKind = iota
	RectilinearS
	CurvilinearZ
	CurvilinearS
)

func (k GridKind) String() string {
	switch k {
	case RectilinearZ:
		return "RectilinearZ"
	case RectilinearS:
		return "RectilinearS"
	case CurvilinearZ:
		return "CurvilinearZ"
	case CurvilinearS:
		return "CurvilinearS"
	default:
		return "unknown"
	}
}

// Grid is the geometry descriptor shared by every Field sampled against
// it. One *Grid is shared by pointer across many Fields; after
// construction only FieldSet.AddPeriodicHalo changes it (extending its
// lon/lat axes and dimensions), besides the lazily built cell index.
type Grid struct {
	Kind GridKind
	Mesh MeshKind

	// Lon, Lat are 1-D [X], [Y] for rectilinear grids and 2-D [Y,X] for
	// curvilinear grids.
	Lon, Lat *sparse.DenseArray

	// Depth is 1-D [Z] for Z-grids, and up to 4-D [X,Y,Z,T] for S-grids
	// (3-D [X,Y,Z] if the column shape is constant in time).
	Depth *sparse.DenseArray

	// Time holds the full time axis in seconds since TimeOrigin, strictly
	// increasing.
	Time       []float64
	TimeOrigin time.Time

	Xdim, Ydim, Zdim, Tdim int

	indexOnce sync.Once
	index     *rtree.Rtree // curvilinear horizontal cell index, built lazily
}

type quadCell struct {
	xi, yi     int
	lox, hix   float64
	loy, hiy   float64
}

func (q *quadCell) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: q.lox, Y: q.loy},
		Max: geom.Point{X: q.hix, Y: q.hiy},
	}
}

// NewRectilinearZGrid constructs a RectilinearZ grid with a flat 1-D depth
// axis; use NewRectilinearSGrid for per-column depth. lon must be strictly
// monotone.
func NewRectilinearZGrid(lon, lat, depth []float64, t []float64, origin time.Time, mesh MeshKind) (*Grid, error) {
	if err := checkMonotone("lon", lon, mesh == MeshSpherical); err != nil {
		return nil, err
	}
	if err := checkMonotone("lat", lat, false); err != nil {
		return nil, err
	}
	if err := checkMonotoneDepth(depth); err != nil {
		return nil, err
	}
	if err := checkTime(t); err != nil {
		return nil, err
	}
	g := &Grid{
		Kind:       RectilinearZ,
		Mesh:       mesh,
		Lon:        sparse.ZerosDense(len(lon)),
		Lat:        sparse.ZerosDense(len(lat)),
		Depth:      sparse.ZerosDense(max(len(depth), 1)),
		Time:       append([]float64(nil), t...),
		TimeOrigin: origin,
		Xdim:       len(lon),
		Ydim:       len(lat),
		Zdim:       max(len(depth), 1),
		Tdim:       len(t),
	}
	copyInto(g.Lon, lon)
	copyInto(g.Lat, lat)
	copyInto(g.Depth, depth)
	return g, nil
}

// NewCurvilinearZGrid constructs a CurvilinearZ grid. lon and lat are
// [Y][X] arrays; depth is a flat 1-D Z axis shared by every column.
func NewCurvilinearZGrid(lon, lat [][]float64, depth []float64, t []float64, origin time.Time, mesh MeshKind) (*Grid, error) {
	if len(lon) == 0 || len(lon[0]) == 0 {
		return nil, fmt.Errorf("parcels: curvilinear grid requires a non-empty lon array")
	}
	if err := checkMonotoneDepth(depth); err != nil {
		return nil, err
	}
	if err := checkTime(t); err != nil {
		return nil, err
	}
	ydim, xdim := len(lon), len(lon[0])
	g := &Grid{
		Kind:       CurvilinearZ,
		Mesh:       mesh,
		Lon:        sparse.ZerosDense(ydim, xdim),
		Lat:        sparse.ZerosDense(ydim, xdim),
		Depth:      sparse.ZerosDense(max(len(depth), 1)),
		Time:       append([]float64(nil), t...),
		TimeOrigin: origin,
		Xdim:       xdim,
		Ydim:       ydim,
		Zdim:       max(len(depth), 1),
		Tdim:       len(t),
	}
	for j := 0; j < ydim; j++ {
		for i := 0; i < xdim; i++ {
			g.Lon.Set(lon[j][i], j, i)
			g.Lat.Set(lat[j][i], j, i)
		}
	}
	copyInto(g.Depth, depth)
	return g, nil
}

// NewRectilinearSGrid constructs a RectilinearS grid whose depth varies by
// horizontal column. depth is indexed depth[x][y][z] and, if timeVarying,
// depth[x][y][z][t].
func NewRectilinearSGrid(lon, lat []float64, depth [][][]float64, depthT [][][][]float64, t []float64, origin time.Time, mesh MeshKind) (*Grid, error) {
	if err := checkMonotone("lon", lon, mesh == MeshSpherical); err != nil {
		return nil, err
	}
	if err := checkMonotone("lat", lat, false); err != nil {
		return nil, err
	}
	if err := checkTime(t); err != nil {
		return nil, err
	}
	xdim, ydim := len(lon), len(lat)
	var zdim int
	var data *sparse.DenseArray
	if depthT != nil {
		zdim = len(depthT[0][0])
		data = sparse.ZerosDense(xdim, ydim, zdim, len(t))
		for x := 0; x < xdim; x++ {
			for y := 0; y < ydim; y++ {
				col := make([]float64, zdim)
				for ti := range t {
					for z := 0; z < zdim; z++ {
						col[z] = depthT[x][y][z][ti]
					}
					if err := checkMonotoneDepth(col); err != nil {
						return nil, fmt.Errorf("parcels: column (%d,%d): %w", x, y, err)
					}
				}
				for z := 0; z < zdim; z++ {
					for ti := range t {
						data.Set(depthT[x][y][z][ti], x, y, z, ti)
					}
				}
			}
		}
	} else {
		zdim = len(depth[0][0])
		data = sparse.ZerosDense(xdim, ydim, zdim)
		for x := 0; x < xdim; x++ {
			for y := 0; y < ydim; y++ {
				if err := checkMonotoneDepth(depth[x][y]); err != nil {
					return nil, fmt.Errorf("parcels: column (%d,%d): %w", x, y, err)
				}
				for z := 0; z < zdim; z++ {
					data.Set(depth[x][y][z], x, y, z)
				}
			}
		}
	}
	g := &Grid{
		Kind:       RectilinearS,
		Mesh:       mesh,
		Lon:        sparse.ZerosDense(xdim),
		Lat:        sparse.ZerosDense(ydim),
		Depth:      data,
		Time:       append([]float64(nil), t...),
		TimeOrigin: origin,
		Xdim:       xdim,
		Ydim:       ydim,
		Zdim:       zdim,
		Tdim:       len(t),
	}
	copyInto(g.Lon, lon)
	copyInto(g.Lat, lat)
	return g, nil
}

// NewCurvilinearSGrid constructs a CurvilinearS grid: 2-D horizontal
// coordinates with a per-column, optionally time-varying depth.
func NewCurvilinearSGrid(lon, lat [][]float64, depth [][][]float64, depthT [][][][]float64, t []float64, origin time.Time, mesh MeshKind) (*Grid, error) {
	if len(lon) == 0 || len(lon[0]) == 0 {
		return nil, fmt.Errorf("parcels: curvilinear grid requires a non-empty lon array")
	}
	if err := checkTime(t); err != nil {
		return nil, err
	}
	ydim, xdim := len(lon), len(lon[0])
	var zdim int
	var data *sparse.DenseArray
	if depthT != nil {
		zdim = len(depthT[0][0])
		data = sparse.ZerosDense(xdim, ydim, zdim, len(t))
		for x := 0; x < xdim; x++ {
			for y := 0; y < ydim; y++ {
				for z := 0; z < zdim; z++ {
					for ti := range t {
						data.Set(depthT[x][y][z][ti], x, y, z, ti)
					}
				}
			}
		}
	} else {
		zdim = len(depth[0][0])
		data = sparse.ZerosDense(xdim, ydim, zdim)
		for x := 0; x < xdim; x++ {
			for y := 0; y < ydim; y++ {
				for z := 0; z < zdim; z++ {
					data.Set(depth[x][y][z], x, y, z)
				}
			}
		}
	}
	g := &Grid{
		Kind:       CurvilinearS,
		Mesh:       mesh,
		Lon:        sparse.ZerosDense(ydim, xdim),
		Lat:        sparse.ZerosDense(ydim, xdim),
		Depth:      data,
		Time:       append([]float64(nil), t...),
		TimeOrigin: origin,
		Xdim:       xdim,
		Ydim:       ydim,
		Zdim:       zdim,
		Tdim:       len(t),
	}
	for j := 0; j < ydim; j++ {
		for i := 0; i < xdim; i++ {
			g.Lon.Set(lon[j][i], j, i)
			g.Lat.Set(lat[j][i], j, i)
		}
	}
	return g, nil
}

func (g *Grid) curvilinear() bool {
	return g.Kind == CurvilinearZ || g.Kind == CurvilinearS
}

func (g *Grid) sGrid() bool {
	return g.Kind == RectilinearS || g.Kind == CurvilinearS
}

// lonAt/latAt read a horizontal coordinate uniformly across rectilinear
// and curvilinear storage.
func (g *Grid) lonAt(xi, yi int) float64 {
	if g.curvilinear() {
		return g.Lon.Get(yi, xi)
	}
	return g.Lon.Get(xi)
}

func (g *Grid) latAt(xi, yi int) float64 {
	if g.curvilinear() {
		return g.Lat.Get(yi, xi)
	}
	return g.Lat.Get(yi)
}

// buildIndex lazily constructs an r-tree over the grid's quadrilateral
// cells, giving CellSearch an O(log n) initial guess for curvilinear
// grids instead of a full scan when no hint is supplied.
func (g *Grid) buildIndex() {
	g.indexOnce.Do(func() {
		tree := rtree.NewTree(25, 50)
		for yi := 0; yi < g.Ydim-1; yi++ {
			for xi := 0; xi < g.Xdim-1; xi++ {
				lox, hix := math.Inf(1), math.Inf(-1)
				loy, hiy := math.Inf(1), math.Inf(-1)
				for _, c := range [][2]int{{xi, yi}, {xi + 1, yi}, {xi + 1, yi + 1}, {xi, yi + 1}} {
					lo := g.lonAt(c[0], c[1])
					la := g.latAt(c[0], c[1])
					lox, hix = math.Min(lox, lo), math.Max(hix, lo)
					loy, hiy = math.Min(loy, la), math.Max(hiy, la)
				}
				tree.Insert(&quadCell{xi: xi, yi: yi, lox: lox, hix: hix, loy: loy, hiy: hiy})
			}
		}
		g.index = tree
	})
}

func checkMonotone(label string, v []float64, spherical bool) error {
	if len(v) < 2 {
		return nil
	}
	asc := v[1] > v[0]
	for i := 1; i < len(v); i++ {
		if asc && v[i] <= v[i-1] || !asc && v[i] >= v[i-1] {
			return fmt.Errorf("parcels: %s is not strictly monotone", label)
		}
	}
	return nil
}

func checkMonotoneDepth(d []float64) error {
	for i := 1; i < len(d); i++ {
		if d[i] <= d[i-1] {
			return fmt.Errorf("parcels: depth is not monotone-increasing")
		}
	}
	return nil
}

func checkTime(t []float64) error {
	for i := 1; i < len(t); i++ {
		if t[i] <= t[i-1] {
			return fmt.Errorf("parcels: time axis is not strictly increasing")
		}
	}
	return nil
}

func copyInto(d *sparse.DenseArray, v []float64) {
	for i, x := range v {
		d.Elements[i] = x
	}
}

// GridSet deduplicates Grid pointers referenced by a FieldSet's fields and
// owns the SnapshotWindow for each distinct grid.
type GridSet struct {
	grids   []*Grid
	windows map[*Grid]*SnapshotWindow
}

// NewGridSet returns an empty GridSet.
func NewGridSet() *GridSet {
	return &GridSet{windows: make(map[*Grid]*SnapshotWindow)}
}

// Add registers g (by pointer identity) and returns its SnapshotWindow,
// creating one on first registration.
func (gs *GridSet) Add(g *Grid) *SnapshotWindow {
	if w, ok := gs.windows[g]; ok {
		return w
	}
	gs.grids = append(gs.grids, g)
	w := newSnapshotWindow(g)
	gs.windows[g] = w
	return w
}

// Grids returns the distinct grids registered so far.
func (gs *GridSet) Grids() []*Grid {
	return gs.grids
}

// Windows returns every SnapshotWindow in the set, one per distinct grid.
func (gs *GridSet) Windows() []*SnapshotWindow {
	out := make([]*SnapshotWindow, 0, len(gs.grids))
	for _, g := range gs.grids {
		out = append(out, gs.windows[g])
	}
	return out
}
