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
// Package runconfig loads the TOML run description consumed by cmd/parcels:
// integrator choice, step size, run length, output cadence, and periodic
// release parameters. It mirrors VarGridConfig's pattern of a
// flat, tagged struct loaded in one call.
package runconfig

import (
	"fmt"
	"math"

	"github.com/BurntSushi/toml"
)

// Integrator names the advection scheme.
type Integrator string

const (
	IntegratorEuler        Integrator = "euler"
	IntegratorRK4          Integrator = "rk4"
	IntegratorRK4_3D       Integrator = "rk4_3d"
	IntegratorAdaptiveRK45 Integrator = "rk45"
)

// Config is the TOML-decoded shape of a run file.
type Config struct {
	Integrator Integrator `toml:"integrator"`

	Dt             float64 `toml:"dt"`
	Runtime        float64 `toml:"runtime"`
	EndTime        float64 `toml:"end_time"`
	OutputInterval float64 `toml:"output_interval"`
	RepeatDt       float64 `toml:"repeat_dt"`

	// VerticalVelocityField names the W field consumed by rk4_3d;
	// required only for that integrator.
	VerticalVelocityField string `toml:"vertical_velocity_field"`

	// SnapshotFile/Variables describe the ncio-backed input.
	SnapshotFile string   `toml:"snapshot_file"`
	Variables    []string `toml:"variables"`

	// OutputFile is where the traj.Writer writes trajectories.
	OutputFile string `toml:"output_file"`

	// Release describes the initial particle seeding.
	Release struct {
		Lon0   float64 `toml:"lon0"`
		Lat0   float64 `toml:"lat0"`
		Depth0 float64 `toml:"depth0"`
		Lon1   float64 `toml:"lon1"`
		Lat1   float64 `toml:"lat1"`
		Depth1 float64 `toml:"depth1"`
		Count  int     `toml:"count"`
		Time   float64 `toml:"time"`
	} `toml:"release"`
}

// Load reads and validates a TOML run file at path.
func Load(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("parcels/runconfig: decoding %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Integrator {
	case IntegratorEuler, IntegratorRK4, IntegratorRK4_3D, IntegratorAdaptiveRK45:
	case "":
		c.Integrator = IntegratorRK4
	default:
		return fmt.Errorf("parcels/runconfig: unknown integrator %q", c.Integrator)
	}
	haveRuntime := c.Runtime != 0
	haveEnd := c.EndTime != 0
	if haveRuntime && haveEnd {
		return fmt.Errorf("parcels/runconfig: runtime and end_time are mutually exclusive")
	}
	if !haveRuntime {
		c.Runtime = math.NaN()
	}
	if !haveEnd {
		c.EndTime = math.NaN()
	}
	if c.Integrator == IntegratorRK4_3D && c.VerticalVelocityField == "" {
		return fmt.Errorf("parcels/runconfig: rk4_3d requires vertical_velocity_field")
	}
	return nil
}
