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

	"github.com/Knetic/govaluate"
)

// KernelStatus is the outcome of one Kernel invocation for one particle.
// It is distinct from ParticleState: a kernel reports an outcome for
// *this* substep, which the driver then folds into the particle's
// persistent State.
type KernelStatus int

const (
	StatusSuccess KernelStatus = iota
	StatusDelete
	StatusRepeat
	StatusOutOfBounds
	StatusTimeExtrapolation
	StatusError
)

func statusForError(err error) KernelStatus {
	switch stateForError(err) {
	case StateErrorOutOfBounds:
		return StatusOutOfBounds
	case StateErrorTimeExtrapolation:
		return StatusTimeExtrapolation
	default:
		return StatusError
	}
}

// Kernel is a user-supplied per-particle update function.
// A kernel pipeline is built by composing a function list; composition is
// associative. A native code-generation path for kernels is out of scope
// here — this interpreter is the reference semantics.
type Kernel func(ctx context.Context, p Particle, fs *FieldSet, time, dt float64) KernelStatus

// Compose chains kernels in order; the pipeline stops at the first
// non-success status.
func Compose(kernels ...Kernel) Kernel {
	return func(ctx context.Context, p Particle, fs *FieldSet, time, dt float64) KernelStatus {
		for _, k := range kernels {
			if st := k(ctx, p, fs, time, dt); st != StatusSuccess {
				return st
			}
		}
		return StatusSuccess
	}
}

// ExpressionKernel builds a Kernel from a boolean govaluate expression
// evaluated against the particle's fixed attributes (lon, lat, depth,
// time, dt) and its user-defined variables; when the expression evaluates
// true the particle is deleted, e.g. "depth > 1000" or "lat > 85".
func ExpressionKernel(expr string) (Kernel, error) {
	compiled, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("parcels: compiling expression kernel %q: %w", expr, err)
	}
	return func(_ context.Context, p Particle, _ *FieldSet, time, dt float64) KernelStatus {
		params := map[string]interface{}{
			"lon": p.Lon(), "lat": p.Lat(), "depth": p.Depth(),
			"time": time, "dt": dt,
		}
		for name, vals := range p.set.userVars {
			params[name] = vals[p.idx]
		}
		result, err := compiled.Evaluate(params)
		if err != nil {
			return StatusError
		}
		if b, ok := result.(bool); ok && b {
			return StatusDelete
		}
		return StatusSuccess
	}, nil
}
