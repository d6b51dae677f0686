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
// Package traj implements an indexed-mode trajectory writer: a flat file
// of ragged [obs] rows, each tagged with a trajectory_id, rather than the
// fixed [traj_id, obs] array layout a CF-NetCDF trajectory file would use.
// The on-disk layout here is a plain newline-delimited record stream: one
// header line naming the columns, one data line per write per particle.
package traj

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/raymondedwards95/parcels"
)

// Writer is the indexed-mode parcels.TrajectoryWriter: every call to
// Write appends one row per live particle, tagged by trajectory id, so
// the particle set may grow across the run (periodic release) without
// the monotone-id ceiling the array-mode layout requires.
type Writer struct {
	w         *bufio.Writer
	closer    io.Closer
	userSpecs []parcels.UserVarSpec

	onceWritten map[int64]bool
	headerDone  bool
}

// NewWriter wraps w (typically an *os.File) as an indexed-mode trajectory
// writer for particles carrying ps's user-defined attributes.
func NewWriter(w io.WriteCloser, ps *parcels.ParticleSet) *Writer {
	return &Writer{
		w:           bufio.NewWriter(w),
		closer:      w,
		userSpecs:   append([]parcels.UserVarSpec(nil), ps.UserSpecs()...),
		onceWritten: make(map[int64]bool),
	}
}

func (t *Writer) writeHeader() error {
	cols := []string{"trajectory_id", "time", "lat", "lon", "z"}
	for _, s := range t.userSpecs {
		cols = append(cols, s.Name)
	}
	_, err := fmt.Fprintln(t.w, strings.Join(cols, ","))
	return err
}

// Write appends one observation row per particle in ps, skipping
// once-persisted user variables after their first write for a given
// trajectory id.
func (t *Writer) Write(simTime float64, ps *parcels.ParticleSet) error {
	if !t.headerDone {
		if err := t.writeHeader(); err != nil {
			return fmt.Errorf("parcels/traj: writing header: %w", err)
		}
		t.headerDone = true
	}
	for i := 0; i < ps.Size(); i++ {
		p := ps.At(i)
		row := []string{
			fmt.Sprintf("%d", p.ID()),
			fmt.Sprintf("%.6f", simTime),
			fmt.Sprintf("%.8f", p.Lat()),
			fmt.Sprintf("%.8f", p.Lon()),
			fmt.Sprintf("%.4f", p.Depth()),
		}
		for _, s := range t.userSpecs {
			if s.Persistence == parcels.PersistenceOnce && t.onceWritten[p.ID()] {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprintf("%g", p.Var(s.Name)))
		}
		if _, err := fmt.Fprintln(t.w, strings.Join(row, ",")); err != nil {
			return fmt.Errorf("parcels/traj: writing row: %w", err)
		}
		t.onceWritten[p.ID()] = true
	}
	return t.w.Flush()
}

// Close flushes and closes the underlying writer.
func (t *Writer) Close() error {
	if err := t.w.Flush(); err != nil {
		return err
	}
	return t.closer.Close()
}
