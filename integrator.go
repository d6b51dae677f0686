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

	"github.com/gonum/floats"
)

// EulerIntegration is the explicit Euler advection kernel: one UV
// evaluation at the current state.
func EulerIntegration() Kernel {
	return func(ctx context.Context, p Particle, fs *FieldSet, time, dt float64) KernelStatus {
		u, v, err := fs.SampleUV(ctx, time, p.Lon(), p.Lat(), p.Depth())
		if err != nil {
			return statusForError(err)
		}
		p.SetLon(p.Lon() + u*dt)
		p.SetLat(p.Lat() + v*dt)
		return StatusSuccess
	}
}

// RK4Integration is the 4th-order Runge-Kutta advection kernel: four UV
// evaluations at (t, t+dt/2, t+dt/2, t+dt) with midpoint-extrapolated
// positions, combined as (k1+2k2+2k3+k4)/6.
func RK4Integration() Kernel {
	return func(ctx context.Context, p Particle, fs *FieldSet, time, dt float64) KernelStatus {
		lon0, lat0 := p.Lon(), p.Lat()

		u1, v1, err := fs.SampleUV(ctx, time, lon0, lat0, p.Depth())
		if err != nil {
			return statusForError(err)
		}
		u2, v2, err := fs.SampleUV(ctx, time+dt/2, lon0+u1*dt/2, lat0+v1*dt/2, p.Depth())
		if err != nil {
			return statusForError(err)
		}
		u3, v3, err := fs.SampleUV(ctx, time+dt/2, lon0+u2*dt/2, lat0+v2*dt/2, p.Depth())
		if err != nil {
			return statusForError(err)
		}
		u4, v4, err := fs.SampleUV(ctx, time+dt, lon0+u3*dt, lat0+v3*dt, p.Depth())
		if err != nil {
			return statusForError(err)
		}
		p.SetLon(lon0 + (u1+2*u2+2*u3+u4)/6*dt)
		p.SetLat(lat0 + (v1+2*v2+2*v3+v4)/6*dt)
		return StatusSuccess
	}
}

// RK4_3DIntegration is RK4Integration extended with a vertical-velocity
// field W, also updating depth.
func RK4_3DIntegration(wFieldName string) Kernel {
	sampleW := func(ctx context.Context, fs *FieldSet, t, x, y, z float64) (float64, error) {
		return fs.Sample(ctx, wFieldName, t, x, y, z)
	}
	return func(ctx context.Context, p Particle, fs *FieldSet, time, dt float64) KernelStatus {
		lon0, lat0, dep0 := p.Lon(), p.Lat(), p.Depth()

		u1, v1, err := fs.SampleUV(ctx, time, lon0, lat0, dep0)
		if err != nil {
			return statusForError(err)
		}
		w1, err := sampleW(ctx, fs, time, lon0, lat0, dep0)
		if err != nil {
			return statusForError(err)
		}

		u2, v2, err := fs.SampleUV(ctx, time+dt/2, lon0+u1*dt/2, lat0+v1*dt/2, dep0+w1*dt/2)
		if err != nil {
			return statusForError(err)
		}
		w2, err := sampleW(ctx, fs, time+dt/2, lon0+u1*dt/2, lat0+v1*dt/2, dep0+w1*dt/2)
		if err != nil {
			return statusForError(err)
		}

		u3, v3, err := fs.SampleUV(ctx, time+dt/2, lon0+u2*dt/2, lat0+v2*dt/2, dep0+w2*dt/2)
		if err != nil {
			return statusForError(err)
		}
		w3, err := sampleW(ctx, fs, time+dt/2, lon0+u2*dt/2, lat0+v2*dt/2, dep0+w2*dt/2)
		if err != nil {
			return statusForError(err)
		}

		u4, v4, err := fs.SampleUV(ctx, time+dt, lon0+u3*dt, lat0+v3*dt, dep0+w3*dt)
		if err != nil {
			return statusForError(err)
		}
		w4, err := sampleW(ctx, fs, time+dt, lon0+u3*dt, lat0+v3*dt, dep0+w3*dt)
		if err != nil {
			return statusForError(err)
		}

		p.SetLon(lon0 + (u1+2*u2+2*u3+u4)/6*dt)
		p.SetLat(lat0 + (v1+2*v2+2*v3+v4)/6*dt)
		p.SetDepth(dep0 + (w1+2*w2+2*w3+w4)/6*dt)
		return StatusSuccess
	}
}

// Fehlberg RK4(5) Butcher tableau, as exact rationals.
var (
	rk45C = [5]float64{1.0 / 4, 3.0 / 8, 12.0 / 13, 1, 1.0 / 2}

	rk45A = [5][5]float64{
		{1.0 / 4},
		{3.0 / 32, 9.0 / 32},
		{1932.0 / 2197, -7200.0 / 2197, 7296.0 / 2197},
		{439.0 / 216, -8, 3680.0 / 513, -845.0 / 4104},
		{-8.0 / 27, 2, -3544.0 / 2565, 1859.0 / 4104, -11.0 / 40},
	}

	rk45B4 = [6]float64{25.0 / 216, 0, 1408.0 / 2565, 2197.0 / 4104, -1.0 / 5, 0}
	rk45B5 = [6]float64{16.0 / 135, 0, 6656.0 / 12825, 28561.0 / 56430, -9.0 / 50, 2.0 / 55}
)

// AdaptiveRK45Tolerance is the default local error tolerance tau.
const AdaptiveRK45Tolerance = 1e-9

// AdaptiveRK45Integration is the embedded Runge-Kutta-Fehlberg 4(5)
// adaptive-step advection kernel. On acceptance it may double
// particle.dt; on rejection it halves particle.dt and returns
// StatusRepeat so the driver re-invokes the same substep without
// advancing particle.time.
func AdaptiveRK45Integration() Kernel {
	return func(ctx context.Context, p Particle, fs *FieldSet, time, dt float64) KernelStatus {
		lon0, lat0 := p.Lon(), p.Lat()

		var ku, kv [6]float64
		ku[0], kv[0] = 0, 0 // k1 computed below, kept in slot 0 for uniform indexing with b4/b5

		u1, v1, err := fs.SampleUV(ctx, time, lon0, lat0, p.Depth())
		if err != nil {
			return statusForError(err)
		}
		ku[0], kv[0] = u1, v1

		for stage := 1; stage < 6; stage++ {
			x, y := lon0, lat0
			for j := 0; j < stage; j++ {
				x += rk45A[stage-1][j] * ku[j] * dt
				y += rk45A[stage-1][j] * kv[j] * dt
			}
			u, v, err := fs.SampleUV(ctx, time+rk45C[stage-1]*dt, x, y, p.Depth())
			if err != nil {
				return statusForError(err)
			}
			ku[stage], kv[stage] = u, v
		}

		var lon4, lat4, lon5, lat5 float64
		lon4, lat4 = lon0, lat0
		lon5, lat5 = lon0, lat0
		for j := 0; j < 6; j++ {
			lon4 += rk45B4[j] * ku[j] * dt
			lat4 += rk45B4[j] * kv[j] * dt
			lon5 += rk45B5[j] * ku[j] * dt
			lat5 += rk45B5[j] * kv[j] * dt
		}

		kappa := floats.Norm([]float64{lon5 - lon4, lat5 - lat4}, 2)
		tol := AdaptiveRK45Tolerance

		if kappa <= abs(dt)*tol {
			p.SetLon(lon4)
			p.SetLat(lat4)
			if kappa <= abs(dt)*tol/10 {
				p.SetDt(p.Dt() * 2)
			}
			return StatusSuccess
		}
		p.SetDt(p.Dt() / 2)
		return StatusRepeat
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
