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

import "time"

// SnapshotMeta carries the calendar metadata accompanying a lazy backing
// array.
type SnapshotMeta struct {
	TimeOrigin time.Time
	TimeUnits  string
	Calendar   string // "proleptic_gregorian" | "standard" | "gregorian"
}

// NormalizeCalendar coerces any unrecognised calendar name to "standard".
func (m SnapshotMeta) NormalizeCalendar() string {
	switch m.Calendar {
	case "proleptic_gregorian", "standard", "gregorian":
		return m.Calendar
	default:
		return "standard"
	}
}

// TrajectoryWriter persists a ParticleSet snapshot at a given simulation
// time. Full CF-NetCDF trajectory encoding is out of scope; package traj
// provides one concrete flat-file implementation of this interface.
type TrajectoryWriter interface {
	Write(time float64, ps *ParticleSet) error
	Close() error
}
