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

	"github.com/sirupsen/logrus"
)

// eventTolerance is the absolute tolerance, in seconds, used to decide
// whether the driver's clock has reached a scheduled event.
const eventTolerance = 1e-12

// trivialRunThreshold is the |end_time - start_time| below which execute
// runs the kernel exactly once without advancing.
const trivialRunThreshold = 1e-5

// ExecutionDriver runs a composed Kernel over a ParticleSet against a
// FieldSet, coordinating periodic release, chunk advancement, and
// trajectory output.
type ExecutionDriver struct {
	FieldSet   *FieldSet
	Particles  *ParticleSet
	Kernel     Kernel
	Recovery   RecoveryMap
	Writer     TrajectoryWriter

	// Dt is the signed integration step. Its sign fixes the direction of
	// the whole run.
	Dt float64

	// OutputInterval is the period, in seconds, between trajectory
	// writes. Zero disables periodic output (only the final write fires).
	OutputInterval float64

	// RepeatDt is the period, in seconds, between periodic-release
	// cohorts. Zero disables periodic release.
	RepeatDt float64
}

// Execute runs the driver until end_time is reached.
// Exactly one of runtime or explicit endTime must be supplied: pass
// math.NaN() for whichever is not in use.
func (d *ExecutionDriver) Execute(ctx context.Context, runtime, explicitEndTime float64) error {
	if d.Dt == 0 {
		return d.runOnce(ctx, d.startTime())
	}
	sign := signOf(d.Dt)

	haveRuntime := !math.IsNaN(runtime)
	haveEnd := !math.IsNaN(explicitEndTime)
	if haveRuntime && haveEnd {
		return fmt.Errorf("parcels: execute: runtime and end_time are mutually exclusive")
	}

	start := d.startTime()
	var end float64
	switch {
	case haveRuntime:
		end = start + runtime*sign
	case haveEnd:
		end = explicitEndTime
	default:
		return fmt.Errorf("parcels: execute: one of runtime or end_time is required")
	}

	if math.Abs(end-start) < trivialRunThreshold {
		return d.runOnce(ctx, start)
	}

	time := start
	nextRelease := time
	if d.RepeatDt <= 0 {
		nextRelease = sign * math.Inf(1)
	}
	nextOutput := time
	if d.OutputInterval <= 0 {
		nextOutput = sign * math.Inf(1)
	}
	nextMovie := sign * math.Inf(1)

	nextChunk, err := d.FieldSet.AdvanceChunks(ctx, time, signInt(sign))
	if err != nil {
		return err
	}

	for sign*(time-end) < 0 {
		time = earliestEvent(sign, nextRelease, nextChunk, nextOutput, nextMovie, end)

		if err := d.step(ctx, time); err != nil {
			return err
		}
		d.Particles.CompactDeleted()

		if math.Abs(time-nextRelease) < eventTolerance {
			n := d.Particles.ReleaseCohort(time)
			logrus.WithField("count", n).Debug("parcels: released cohort")
			nextRelease += d.RepeatDt * sign
		}
		if math.Abs(time-nextChunk) < eventTolerance {
			nc, err := d.FieldSet.AdvanceChunks(ctx, time, signInt(sign))
			if err != nil {
				return err
			}
			nextChunk = nc
		}
		if math.Abs(time-nextOutput) < eventTolerance {
			if d.Writer != nil {
				if err := d.Writer.Write(time, d.Particles); err != nil {
					return err
				}
			}
			nextOutput += d.OutputInterval * sign
		}
	}

	if d.Writer != nil {
		return d.Writer.Write(time, d.Particles)
	}
	return nil
}

func (d *ExecutionDriver) runOnce(ctx context.Context, time float64) error {
	for i := 0; i < d.Particles.Size(); i++ {
		p := d.Particles.At(i)
		if p.State() == StateDeleted || p.State() == StateStopped {
			continue
		}
		switch status := d.Kernel(ctx, p, d.FieldSet, p.Time(), 0); status {
		case StatusSuccess, StatusRepeat:
		case StatusDelete:
			p.SetState(StateDeleted)
		default:
			p.SetState(d.Recovery.dispatch(p, d.FieldSet, stateFromStatus(status)))
		}
	}
	if d.Writer != nil {
		return d.Writer.Write(time, d.Particles)
	}
	return nil
}

// startTime resolves the run's starting clock: min (forward) or max (backward)
// particle time, falling back to the fieldset's first/last grid time
// when the set is empty.
func (d *ExecutionDriver) startTime() float64 {
	sign := signOf(d.Dt)
	if d.Particles.Size() == 0 {
		return d.fallbackStartTime(sign)
	}
	best := d.Particles.Time[0]
	for _, t := range d.Particles.Time[1:] {
		if sign >= 0 && t < best {
			best = t
		} else if sign < 0 && t > best {
			best = t
		}
	}
	return best
}

func (d *ExecutionDriver) fallbackStartTime(sign float64) float64 {
	for _, g := range d.FieldSet.Grids().Grids() {
		if len(g.Time) == 0 {
			continue
		}
		if sign >= 0 {
			return g.Time[0]
		}
		return g.Time[len(g.Time)-1]
	}
	return 0
}

// step runs the kernel's substep loop for every particle until each
// reaches endTime, dispatching errored particles to Recovery.
func (d *ExecutionDriver) step(ctx context.Context, endTime float64) error {
	sign := signOf(d.Dt)
particleLoop:
	for i := 0; i < d.Particles.Size(); i++ {
		p := d.Particles.At(i)
		if p.State() == StateDeleted || p.State() == StateStopped {
			continue
		}
		if p.Dt() == 0 {
			p.SetDt(d.Dt)
		}
		for sign*(p.Time()-endTime) < 0 {
			dt := p.Dt()
			remaining := endTime - p.Time()
			if sign*dt > sign*remaining && remaining != 0 {
				dt = remaining
			}
			status := d.Kernel(ctx, p, d.FieldSet, p.Time(), dt)
			switch status {
			case StatusSuccess:
				p.SetTime(p.Time() + dt)
			case StatusRepeat:
				// integrator already shrank p.Dt(); retry without advancing time.
			case StatusDelete:
				p.SetState(StateDeleted)
				continue particleLoop
			default:
				state := stateFromStatus(status)
				p.SetState(state)
				resolved := d.Recovery.dispatch(p, d.FieldSet, state)
				p.SetState(resolved)
				if resolved != StateActive {
					continue particleLoop
				}
			}
		}
	}
	return nil
}

func stateFromStatus(s KernelStatus) ParticleState {
	switch s {
	case StatusOutOfBounds:
		return StateErrorOutOfBounds
	case StatusTimeExtrapolation:
		return StateErrorTimeExtrapolation
	default:
		return StateError
	}
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func signInt(sign float64) int {
	if sign < 0 {
		return -1
	}
	return 1
}

// earliestEvent returns the event time closest along sign among the
// candidates.
func earliestEvent(sign float64, candidates ...float64) float64 {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if sign*c < sign*best {
			best = c
		}
	}
	return best
}
