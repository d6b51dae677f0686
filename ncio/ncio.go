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
// Package ncio adapts a bitbucket.org/ctessum/cdf-backed NetCDF file into
// a parcels.SnapshotProvider, the lazy 4-D backing array the core
// consumes per Field. It is grounded on
// VarGridConfig.LoadCTMData's read path: open once, read variable
// metadata eagerly, fetch one time-slice at a time lazily.
package ncio

import (
	"context"
	"fmt"

	"bitbucket.org/ctessum/cdf"
	"bitbucket.org/ctessum/sparse"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Provider is a parcels.SnapshotProvider reading one named variable out of
// an open cdf.File, one (Z,Y,X) time-slice at a time.
type Provider struct {
	file     *cdf.File
	variable string
	tFull, z, y, x int

	retry backoff.BackOff
}

// Open reads rw's header and returns a Provider for variable, whose
// dimensions must be (T,Z,Y,X) or (T,Y,X) (in which case Z=1).
func Open(rw cdf.ReaderWriterAt, variable string) (*Provider, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("parcels/ncio: opening %s: %w", variable, err)
	}
	dims := f.Header.Lengths(variable)
	if len(dims) != 3 && len(dims) != 4 {
		return nil, fmt.Errorf("parcels/ncio: variable %s has %d dimensions, want 3 or 4", variable, len(dims))
	}
	p := &Provider{
		file:     f,
		variable: variable,
		retry:    backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3),
	}
	if len(dims) == 4 {
		p.tFull, p.z, p.y, p.x = dims[0], dims[1], dims[2], dims[3]
	} else {
		p.tFull, p.z, p.y, p.x = dims[0], 1, dims[1], dims[2]
	}
	return p, nil
}

// Shape implements parcels.SnapshotProvider.
func (p *Provider) Shape() (int, int, int, int) { return p.tFull, p.z, p.y, p.x }

// Fetch implements parcels.SnapshotProvider, reading the tIndex-th time
// slice of the variable, retrying transient read failures (the same
// backoff policy SnapshotWindow uses internally for its own retries,
// layered here for the I/O boundary itself).
func (p *Provider) Fetch(_ context.Context, tIndex int) ([]float32, error) {
	n := p.z * p.y * p.x
	start := make([]int, 4)
	end := []int{tIndex + 1, p.z, p.y, p.x}
	start[0] = tIndex
	if len(p.file.Header.Lengths(p.variable)) == 3 {
		start, end = []int{tIndex, 0, 0}, []int{tIndex + 1, p.y, p.x}
	}

	out := make([]float32, n)
	p.retry.Reset()
	err := backoff.Retry(func() error {
		r := p.file.Reader(p.variable, start, end)
		_, err := r.Read(out)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"variable": p.variable, "index": tIndex,
			}).Warn("parcels/ncio: snapshot read failed, retrying")
		}
		return err
	}, p.retry)
	if err != nil {
		return nil, fmt.Errorf("parcels/ncio: reading %s[%d]: %w", p.variable, tIndex, err)
	}
	return out, nil
}

// ReadAxis reads a 1-D coordinate variable (lon, lat, depth, time) fully
// into memory, following LoadCTMData's read-whole-variable pattern for
// small axis arrays.
func ReadAxis(rw cdf.ReaderWriterAt, name string) ([]float64, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("parcels/ncio: opening axis %s: %w", name, err)
	}
	dims := f.Header.Lengths(name)
	n := 1
	for _, d := range dims {
		n *= d
	}
	tmp := make([]float32, n)
	r := f.Reader(name, nil, nil)
	if _, err := r.Read(tmp); err != nil {
		return nil, fmt.Errorf("parcels/ncio: reading axis %s: %w", name, err)
	}
	out := make([]float64, n)
	for i, v := range tmp {
		out[i] = float64(v)
	}
	return out, nil
}

// ReadAxis2D reads a 2-D curvilinear coordinate variable (lon[Y,X] or
// lat[Y,X]) into a sparse.DenseArray.
func ReadAxis2D(rw cdf.ReaderWriterAt, name string) (*sparse.DenseArray, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("parcels/ncio: opening axis %s: %w", name, err)
	}
	dims := f.Header.Lengths(name)
	if len(dims) != 2 {
		return nil, fmt.Errorf("parcels/ncio: axis %s has %d dimensions, want 2", name, len(dims))
	}
	d := sparse.ZerosDense(dims...)
	tmp := make([]float32, len(d.Elements))
	r := f.Reader(name, nil, nil)
	if _, err := r.Read(tmp); err != nil {
		return nil, fmt.Errorf("parcels/ncio: reading axis %s: %w", name, err)
	}
	for i, v := range tmp {
		d.Elements[i] = float64(v)
	}
	return d, nil
}
