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

import "math"

// metersPerDegree is the length, in metres, of one degree of latitude (and
// of longitude at the equator), following the nautical-mile convention
// used throughout the geophysical modelling literature: 1 nm = 1852 m,
// 60 nm = 1 degree.
const metersPerDegree = 1000 * 1.852 * 60

// UnitConverter transforms a field value between its native (source) units
// and the mesh's coordinate units (target), and back. Both directions take
// the query location because the polar variants are latitude-dependent.
type UnitConverter interface {
	ToTarget(v, x, y, z float64) float64
	ToSource(v, x, y, z float64) float64
	String() string
}

// Identity leaves values unchanged; it is the converter for flat meshes
// and for any field without a recognised auto-assignment.
type Identity struct{}

func (Identity) ToTarget(v, _, _, _ float64) float64 { return v }
func (Identity) ToSource(v, _, _, _ float64) float64 { return v }
func (Identity) String() string                      { return "no conversion" }

// Geographic converts metres/second to degrees/second (non-polar axes,
// e.g. meridional velocity on a spherical mesh).
type Geographic struct{}

func (Geographic) ToTarget(v, _, _, _ float64) float64 { return v / metersPerDegree }
func (Geographic) ToSource(v, _, _, _ float64) float64 { return v * metersPerDegree }
func (Geographic) String() string                      { return "m/s to degree/s" }

// GeographicPolar converts metres/second to degrees/second along an axis
// whose physical length shrinks with cos(latitude), e.g. zonal velocity.
type GeographicPolar struct{}

func (GeographicPolar) ToTarget(v, _, y, _ float64) float64 {
	return v / (metersPerDegree * math.Cos(y*math.Pi/180))
}
func (GeographicPolar) ToSource(v, _, y, _ float64) float64 {
	return v * metersPerDegree * math.Cos(y*math.Pi/180)
}
func (GeographicPolar) String() string { return "m/s to degree/s (polar)" }

// GeographicSquare is Geographic squared, for diffusivities (m²/s -> deg²/s).
type GeographicSquare struct{}

func (GeographicSquare) ToTarget(v, x, y, z float64) float64 {
	f := Geographic{}.ToTarget(1, x, y, z)
	return v * f * f
}
func (GeographicSquare) ToSource(v, x, y, z float64) float64 {
	f := Geographic{}.ToSource(1, x, y, z)
	return v * f * f
}
func (GeographicSquare) String() string { return "m^2/s to degree^2/s" }

// GeographicPolarSquare is GeographicPolar squared, for zonal diffusivities.
type GeographicPolarSquare struct{}

func (GeographicPolarSquare) ToTarget(v, x, y, z float64) float64 {
	f := GeographicPolar{}.ToTarget(1, x, y, z)
	return v * f * f
}
func (GeographicPolarSquare) ToSource(v, x, y, z float64) float64 {
	f := GeographicPolar{}.ToSource(1, x, y, z)
	return v * f * f
}
func (GeographicPolarSquare) String() string { return "m^2/s to degree^2/s (polar)" }

// unitConverterForField auto-assigns a UnitConverter from a field name.
// Flat meshes always get Identity regardless of name.
func unitConverterForField(name string, mesh MeshKind) UnitConverter {
	if mesh != MeshSpherical {
		return Identity{}
	}
	switch name {
	case "U":
		return GeographicPolar{}
	case "V":
		return Geographic{}
	case "Kh_zonal":
		return GeographicPolarSquare{}
	case "Kh_meridional":
		return GeographicSquare{}
	default:
		return Identity{}
	}
}
