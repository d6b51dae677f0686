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

import "fmt"

// PersistenceKind controls whether a user-defined particle attribute is
// rewritten at every trajectory observation or captured once.
type PersistenceKind int

const (
	PersistencePerWrite PersistenceKind = iota
	PersistenceOnce
)

// UserVarSpec declares a user-defined particle attribute.
type UserVarSpec struct {
	Name        string
	Initial     float64
	Persistence PersistenceKind
}

// ParticleSet is a structure-of-arrays backing store for an ensemble of
// particles. Ids are allocated monotonically: deletions leave
// gaps, but new ids always exceed old ones.
type ParticleSet struct {
	Lon, Lat, Depth, Time, Dt []float64
	State                     []ParticleState
	ID                        []int64

	userSpecs []UserVarSpec
	userVars  map[string][]float64

	// release is the (lon,lat,depth) a particle was originally seeded at.
	release [][3]float64

	// releaseTemplate is the fixed set of (lon,lat,depth) positions laid
	// down by the initial From* seeding call. ReleaseCohort replays this
	// template on every tick; it is never appended to after seeding, so
	// cohort size stays constant regardless of how many cohorts have
	// already been released.
	releaseTemplate [][3]float64

	nextID int64
}

// NewParticleSet declares the user-defined attributes (beyond the fixed
// lon/lat/depth/time/dt/state/id set) that every particle in this set
// will carry.
func NewParticleSet(userSpecs ...UserVarSpec) *ParticleSet {
	ps := &ParticleSet{userVars: make(map[string][]float64)}
	ps.userSpecs = append(ps.userSpecs, userSpecs...)
	for _, s := range ps.userSpecs {
		ps.userVars[s.Name] = nil
	}
	return ps
}

// Particle is a lightweight handle into a ParticleSet's arrays; it owns
// no storage of its own.
type Particle struct {
	set *ParticleSet
	idx int
}

// ParticleAt returns a handle to the particle at set index idx.
func ParticleAt(ps *ParticleSet, idx int) Particle { return Particle{set: ps, idx: idx} }

func (p Particle) Index() int { return p.idx }

func (p Particle) Lon() float64    { return p.set.Lon[p.idx] }
func (p Particle) Lat() float64    { return p.set.Lat[p.idx] }
func (p Particle) Depth() float64  { return p.set.Depth[p.idx] }
func (p Particle) Time() float64   { return p.set.Time[p.idx] }
func (p Particle) Dt() float64     { return p.set.Dt[p.idx] }
func (p Particle) ID() int64       { return p.set.ID[p.idx] }
func (p Particle) State() ParticleState { return p.set.State[p.idx] }

func (p Particle) SetLon(v float64)   { p.set.Lon[p.idx] = v }
func (p Particle) SetLat(v float64)   { p.set.Lat[p.idx] = v }
func (p Particle) SetDepth(v float64) { p.set.Depth[p.idx] = v }
func (p Particle) SetTime(v float64)  { p.set.Time[p.idx] = v }
func (p Particle) SetDt(v float64)    { p.set.Dt[p.idx] = v }
func (p Particle) SetState(s ParticleState) { p.set.State[p.idx] = s }

// Var reads a user-defined attribute by name.
func (p Particle) Var(name string) float64 {
	return p.set.userVars[name][p.idx]
}

// SetVar writes a user-defined attribute by name.
func (p Particle) SetVar(name string, v float64) {
	p.set.userVars[name][p.idx] = v
}

// FromList creates a particle set from explicit per-particle lon/lat/depth
// and a common initial time.
func (ps *ParticleSet) FromList(lon, lat, depth []float64, time float64) error {
	if len(lon) != len(lat) || len(lon) != len(depth) {
		return fmt.Errorf("parcels: lon/lat/depth must have equal length")
	}
	for i := range lon {
		ps.add(lon[i], lat[i], depth[i], time)
		ps.releaseTemplate = append(ps.releaseTemplate, [3]float64{lon[i], lat[i], depth[i]})
	}
	return nil
}

// FromLine seeds n particles evenly spaced on the straight line between
// (lon0,lat0,depth0) and (lon1,lat1,depth1), inclusive of both endpoints.
func (ps *ParticleSet) FromLine(lon0, lat0, depth0, lon1, lat1, depth1 float64, n int, time float64) error {
	if n < 1 {
		return fmt.Errorf("parcels: FromLine requires at least one particle")
	}
	if n == 1 {
		ps.add(lon0, lat0, depth0, time)
		ps.releaseTemplate = append(ps.releaseTemplate, [3]float64{lon0, lat0, depth0})
		return nil
	}
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)
		lon, lat, depth := lon0+(lon1-lon0)*frac, lat0+(lat1-lat0)*frac, depth0+(depth1-depth0)*frac
		ps.add(lon, lat, depth, time)
		ps.releaseTemplate = append(ps.releaseTemplate, [3]float64{lon, lat, depth})
	}
	return nil
}

// FromField seeds particles at lon/lat/depth triples drawn from the
// locations in release, interpreting time as the common particle-time.
// The triples are typically generated from a field's valid domain by the
// caller.
func (ps *ParticleSet) FromField(release [][3]float64, time float64) error {
	for _, r := range release {
		ps.add(r[0], r[1], r[2], time)
		ps.releaseTemplate = append(ps.releaseTemplate, r)
	}
	return nil
}

func (ps *ParticleSet) add(lon, lat, depth, time float64) int64 {
	id := ps.nextID
	ps.nextID++
	ps.Lon = append(ps.Lon, lon)
	ps.Lat = append(ps.Lat, lat)
	ps.Depth = append(ps.Depth, depth)
	ps.Time = append(ps.Time, time)
	ps.Dt = append(ps.Dt, 0)
	ps.State = append(ps.State, StateActive)
	ps.ID = append(ps.ID, id)
	ps.release = append(ps.release, [3]float64{lon, lat, depth})
	for _, s := range ps.userSpecs {
		ps.userVars[s.Name] = append(ps.userVars[s.Name], s.Initial)
	}
	return id
}

// Size returns the number of particles currently in the set.
func (ps *ParticleSet) Size() int { return len(ps.Lon) }

// UserSpecs returns the user-defined attribute declarations for this set,
// for writers that need to enumerate them by name.
func (ps *ParticleSet) UserSpecs() []UserVarSpec { return ps.userSpecs }

// UserVar returns the backing slice for a named user-defined attribute.
func (ps *ParticleSet) UserVar(name string) []float64 { return ps.userVars[name] }

// At returns a handle to the particle at index idx.
func (ps *ParticleSet) At(idx int) Particle { return Particle{set: ps, idx: idx} }

// ReleaseCohort appends a new particle at each position in the set's fixed
// release template (laid down by the initial From* call), with
// particle-time = t. It returns the number of particles added.
func (ps *ParticleSet) ReleaseCohort(t float64) int {
	n := len(ps.releaseTemplate)
	for i := 0; i < n; i++ {
		r := ps.releaseTemplate[i]
		ps.add(r[0], r[1], r[2], t)
	}
	return n
}

// CompactDeleted removes every particle whose state is StateDeleted,
// preserving relative order and leaving id gaps.
func (ps *ParticleSet) CompactDeleted() {
	w := 0
	for r := 0; r < len(ps.Lon); r++ {
		if ps.State[r] == StateDeleted {
			continue
		}
		if w != r {
			ps.Lon[w], ps.Lat[w], ps.Depth[w] = ps.Lon[r], ps.Lat[r], ps.Depth[r]
			ps.Time[w], ps.Dt[w] = ps.Time[r], ps.Dt[r]
			ps.State[w], ps.ID[w] = ps.State[r], ps.ID[r]
			ps.release[w] = ps.release[r]
			for _, s := range ps.userSpecs {
				ps.userVars[s.Name][w] = ps.userVars[s.Name][r]
			}
		}
		w++
	}
	ps.Lon, ps.Lat, ps.Depth = ps.Lon[:w], ps.Lat[:w], ps.Depth[:w]
	ps.Time, ps.Dt, ps.State, ps.ID = ps.Time[:w], ps.Dt[:w], ps.State[:w], ps.ID[:w]
	ps.release = ps.release[:w]
	for _, s := range ps.userSpecs {
		ps.userVars[s.Name] = ps.userVars[s.Name][:w]
	}
}

// MaxID returns the largest id ever assigned to a particle still present
// in, or ever added to, the set (monitored by array-mode trajectory
// writers: ids only ever increase).
func (ps *ParticleSet) MaxID() int64 {
	return ps.nextID - 1
}
