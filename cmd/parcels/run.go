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
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/raymondedwards95/parcels"
	"github.com/raymondedwards95/parcels/ncio"
	"github.com/raymondedwards95/parcels/runconfig"
	"github.com/raymondedwards95/parcels/traj"
	"github.com/sirupsen/logrus"
)

// runSimulation loads cfgPath, builds the FieldSet and ParticleSet it
// describes, and executes the run to completion.
func runSimulation(cfgPath string) error {
	cfg, err := runconfig.Load(cfgPath)
	if err != nil {
		return err
	}

	f, err := os.Open(cfg.SnapshotFile)
	if err != nil {
		return fmt.Errorf("parcels: opening snapshot file: %w", err)
	}
	defer f.Close()

	lon, err := ncio.ReadAxis(f, "lon")
	if err != nil {
		return err
	}
	lat, err := ncio.ReadAxis(f, "lat")
	if err != nil {
		return err
	}
	depth, err := ncio.ReadAxis(f, "depth")
	if err != nil {
		return err
	}
	gridTime, err := ncio.ReadAxis(f, "time")
	if err != nil {
		return err
	}

	grid, err := parcels.NewRectilinearZGrid(lon, lat, depth, gridTime, time.Now(), parcels.MeshSpherical)
	if err != nil {
		return fmt.Errorf("parcels: building grid: %w", err)
	}

	fs := parcels.NewFieldSet()
	for _, name := range cfg.Variables {
		provider, err := ncio.Open(f, name)
		if err != nil {
			return err
		}
		field, err := parcels.NewField(name, provider, grid, parcels.InterpLinear, false, false, nil, fs.Grids())
		if err != nil {
			return fmt.Errorf("parcels: registering field %s: %w", name, err)
		}
		if err := fs.AddField(field); err != nil {
			return err
		}
	}

	ps := parcels.NewParticleSet()
	r := cfg.Release
	count := r.Count
	if count < 1 {
		count = 1
	}
	if err := ps.FromLine(r.Lon0, r.Lat0, r.Depth0, r.Lon1, r.Lat1, r.Depth1, count, r.Time); err != nil {
		return fmt.Errorf("parcels: seeding particles: %w", err)
	}

	kernel, err := integratorKernel(cfg)
	if err != nil {
		return err
	}

	out, err := os.Create(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("parcels: creating output file: %w", err)
	}
	writer := traj.NewWriter(out, ps)
	defer writer.Close()

	driver := &parcels.ExecutionDriver{
		FieldSet:       fs,
		Particles:      ps,
		Kernel:         kernel,
		Writer:         writer,
		Dt:             cfg.Dt,
		OutputInterval: cfg.OutputInterval,
		RepeatDt:       cfg.RepeatDt,
	}

	logrus.WithFields(logrus.Fields{
		"integrator": cfg.Integrator,
		"particles":  ps.Size(),
	}).Info("parcels: starting run")

	return driver.Execute(context.Background(), cfg.Runtime, cfg.EndTime)
}

func integratorKernel(cfg *runconfig.Config) (parcels.Kernel, error) {
	switch cfg.Integrator {
	case runconfig.IntegratorEuler:
		return parcels.EulerIntegration(), nil
	case runconfig.IntegratorRK4:
		return parcels.RK4Integration(), nil
	case runconfig.IntegratorRK4_3D:
		return parcels.RK4_3DIntegration(cfg.VerticalVelocityField), nil
	case runconfig.IntegratorAdaptiveRK45:
		return parcels.AdaptiveRK45Integration(), nil
	default:
		return nil, fmt.Errorf("parcels: unknown integrator %q", cfg.Integrator)
	}
}
