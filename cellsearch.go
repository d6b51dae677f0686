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
	"math"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// CellLocation is the result of locating the grid cell enclosing a query
// point: integer cell indices and in-cell local coordinates in [0,1].
type CellLocation struct {
	Xi, Yi, Zi     int
	Xsi, Eta, Zeta float64
}

// bilinearBasis is the basis matrix used to invert the quadrilateral map
// in curvilinear horizontal search.
var bilinearBasis = [4][4]float64{
	{1, 0, 0, 0},
	{-1, 1, 0, 0},
	{-1, 0, 0, 1},
	{1, -1, 1, -1},
}

func applyBasis(corners [4]float64) [4]float64 {
	var out [4]float64
	for r := 0; r < 4; r++ {
		var s float64
		for c := 0; c < 4; c++ {
			s += bilinearBasis[r][c] * corners[c]
		}
		out[r] = s
	}
	return out
}

const maxCurvilinearIterations = 1_000_000

// locateCell finds the cell of g enclosing (x,y,z). tidx and timeFrac
// locate the field's current sample in its time axis (timeFrac is the
// fraction of the way from g.Time[tidx] to g.Time[tidx+1]); they are used
// only to interpolate a time-varying S-grid depth column.
func locateCell(g *Grid, x, y, z float64, hintXi, hintYi, tidx int, timeFrac float64) (CellLocation, error) {
	var loc CellLocation
	var err error
	if g.curvilinear() {
		loc, err = locateCurvilinear(g, x, y, hintXi, hintYi)
	} else {
		loc, err = locateRectilinear(g, x, y)
	}
	if err != nil {
		return CellLocation{}, err
	}
	if g.Zdim <= 1 {
		loc.Zi, loc.Zeta = 0, 0
		return loc, nil
	}
	if g.sGrid() {
		zi, zeta, err := locateSColumn(g, loc.Xi, loc.Yi, loc.Xsi, loc.Eta, tidx, timeFrac, z)
		if err != nil {
			return CellLocation{}, err
		}
		loc.Zi, loc.Zeta = zi, zeta
		return loc, nil
	}
	zi, zeta, err := bisectAxis(zAxisValues(g), z, false)
	if err != nil {
		return CellLocation{}, err
	}
	loc.Zi, loc.Zeta = zi, zeta
	return loc, nil
}

func zAxisValues(g *Grid) []float64 {
	v := make([]float64, g.Zdim)
	for i := range v {
		v[i] = g.Depth.Get(i)
	}
	return v
}

// bisectAxis implements the shared rectilinear bisection: find the
// largest i with axis[i] <= q, clamp to len-2, and return the local
// fractional coordinate. When spherical is true, axis is rotated
// per-query so that longitudes within 180 degrees of q are used.
func bisectAxis(axis []float64, q float64, spherical bool) (int, float64, error) {
	a := axis
	if spherical {
		a = make([]float64, len(axis))
		copy(a, axis)
		for i, v := range a {
			d := v - q
			if d > 180 {
				a[i] = v - 360
			} else if d < -180 {
				a[i] = v + 360
			}
		}
	}
	n := len(a)
	if n < 2 {
		return 0, 0, ErrOutOfBounds
	}
	lo, hi := a[0], a[n-1]
	if lo > hi {
		lo, hi = hi, lo
	}
	if q < lo || q > hi {
		return 0, 0, ErrOutOfBounds
	}
	idx := 0
	for i := 0; i < n-1; i++ {
		if a[i] <= q {
			idx = i
		}
	}
	if idx > n-2 {
		idx = n - 2
	}
	frac := (q - a[idx]) / (a[idx+1] - a[idx])
	return idx, frac, nil
}

func locateRectilinear(g *Grid, x, y float64) (CellLocation, error) {
	lon := make([]float64, g.Xdim)
	for i := range lon {
		lon[i] = g.Lon.Get(i)
	}
	lat := make([]float64, g.Ydim)
	for i := range lat {
		lat[i] = g.Lat.Get(i)
	}
	xi, xsi, err := bisectAxis(lon, x, g.Mesh == MeshSpherical)
	if err != nil {
		return CellLocation{}, err
	}
	yi, eta, err := bisectAxis(lat, y, false)
	if err != nil {
		return CellLocation{}, err
	}
	return CellLocation{Xi: xi, Yi: yi, Xsi: xsi, Eta: eta}, nil
}

// quadCorners returns the lon/lat of the four corners of cell (xi,yi) in
// the basis-matrix order [00, 10, 11, 01], wrapping longitudes within 180
// degrees of x for a spherical mesh.
func quadCorners(g *Grid, xi, yi int, x float64) (px, py [4]float64) {
	idx := [4][2]int{{xi, yi}, {xi + 1, yi}, {xi + 1, yi + 1}, {xi, yi + 1}}
	for i, ij := range idx {
		lo := g.lonAt(ij[0], ij[1])
		la := g.latAt(ij[0], ij[1])
		if g.Mesh == MeshSpherical {
			d := lo - x
			if d > 180 {
				lo -= 360
			} else if d < -180 {
				lo += 360
			}
		}
		px[i], py[i] = lo, la
	}
	return px, py
}

// locateCurvilinear implements the bilinear quadrilateral inversion and
// cell walk for curvilinear grids.
func locateCurvilinear(g *Grid, x, y float64, hintXi, hintYi int) (CellLocation, error) {
	xi, yi := hintXi, hintYi
	if xi < 0 || yi < 0 || xi > g.Xdim-2 || yi > g.Ydim-2 {
		xi, yi = curvilinearGuess(g, x, y)
	}
	var xsi, eta float64
	for iter := 0; iter < maxCurvilinearIterations; iter++ {
		px, py := quadCorners(g, xi, yi, x)
		a := applyBasis(px)
		b := applyBasis(py)

		aa := a[3]*b[2] - a[2]*b[3]
		bb := a[3]*b[0] - a[0]*b[3] + a[1]*b[2] - a[2]*b[1] + x*b[3] - y*a[3]
		cc := a[1]*b[0] - a[0]*b[1] + x*b[1] - y*a[1]

		if math.Abs(aa) < 1e-12 {
			xsi = 0.5 * ((x-px[0])/(px[1]-px[0]) + (x-px[3])/(px[2]-px[3]))
			eta = 0.5 * ((y-py[0])/(py[3]-py[0]) + (y-py[1])/(py[2]-py[1]))
		} else {
			det := bb*bb - 4*aa*cc
			if det < 0 || math.IsNaN(det) {
				logrus.WithFields(logrus.Fields{
					"xi": xi, "yi": yi, "det": det,
				}).Warn("parcels: curvilinear cell search discriminant is negative; retaining previous (xsi,eta)")
			} else {
				eta = (-bb + math.Sqrt(det)) / (2 * aa)
				xsi = (x - a[0] - a[2]*eta) / (a[1] + a[3]*eta)
			}
		}

		moved := false
		switch {
		case xsi < 0:
			if xi == 0 {
				if g.Mesh != MeshSpherical {
					return CellLocation{}, ErrOutOfBounds
				}
				xi = g.Xdim - 2
			} else {
				xi--
			}
			moved = true
		case xsi > 1:
			if xi >= g.Xdim-2 {
				if g.Mesh != MeshSpherical {
					return CellLocation{}, ErrOutOfBounds
				}
				xi = 0
			} else {
				xi++
			}
			moved = true
		}
		switch {
		case eta < 0:
			if yi == 0 {
				return CellLocation{}, ErrOutOfBounds
			}
			yi--
			moved = true
		case eta > 1:
			if yi >= g.Ydim-2 {
				return CellLocation{}, ErrOutOfBounds
			}
			yi++
			moved = true
		}
		if !moved {
			return CellLocation{Xi: xi, Yi: yi, Xsi: clamp01(xsi), Eta: clamp01(eta)}, nil
		}
	}
	return CellLocation{}, ErrOutOfBounds
}

// curvilinearGuess uses the grid's lazily-built r-tree to find a starting
// cell for the walk in locateCurvilinear when no hint is available.
func curvilinearGuess(g *Grid, x, y float64) (int, int) {
	g.buildIndex()
	box := &geom.Bounds{Min: geom.Point{X: x, Y: y}, Max: geom.Point{X: x, Y: y}}
	hits := g.index.SearchIntersect(box)
	if len(hits) > 0 {
		q := hits[0].(*quadCell)
		return q.xi, q.yi
	}
	return g.Xdim / 2, g.Ydim / 2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// locateSColumn synthesizes the local depth column at horizontal cell
// (xi,yi), bilinearly blended with weights (xsi,eta) and, for a 4-D
// depth array, linearly interpolated in time between tidx and tidx+1 (or
// the last column if tidx is the final time index), then bisects it for
// z.
func locateSColumn(g *Grid, xi, yi int, xsi, eta float64, tidx int, timeFrac, z float64) (int, float64, error) {
	col := synthesizeColumn(g, xi, yi, xsi, eta, tidx, timeFrac)
	zi, zeta, err := bisectAxis(col, z, false)
	if err != nil {
		return 0, 0, ErrOutOfBounds
	}
	return zi, zeta, nil
}

// synthesizeColumn bilinearly blends the four depth columns bracketing
// (xi,yi) using weights (xsi,eta); if the depth array is 4-D (time
// varying), it additionally linearly interpolates in time between tidx
// and tidx+1 by timeFrac, or holds the last column if tidx is the last
// time index.
func synthesizeColumn(g *Grid, xi, yi int, xsi, eta float64, tidx int, timeFrac float64) []float64 {
	zdim := g.Zdim
	timeVarying := g.Depth.Shape != nil && len(g.Depth.Shape) == 4
	get := func(x, y, z int) float64 {
		if !timeVarying {
			return g.Depth.Get(x, y, z)
		}
		if tidx >= g.Tdim-1 {
			return g.Depth.Get(x, y, z, g.Tdim-1)
		}
		v0 := g.Depth.Get(x, y, z, tidx)
		v1 := g.Depth.Get(x, y, z, tidx+1)
		return v0 + (v1-v0)*timeFrac
	}
	col := make([]float64, zdim)
	for z := 0; z < zdim; z++ {
		c00 := get(xi, yi, z)
		c10 := get(xi+1, yi, z)
		c11 := get(xi+1, yi+1, z)
		c01 := get(xi, yi+1, z)
		col[z] = bilinear(c00, c10, c11, c01, xsi, eta)
	}
	return col
}

func bilinear(c00, c10, c11, c01, xsi, eta float64) float64 {
	return c00*(1-xsi)*(1-eta) + c10*xsi*(1-eta) + c11*xsi*eta + c01*(1-xsi)*eta
}
