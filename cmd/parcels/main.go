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
// Command parcels runs a particle-tracking simulation described by a
// runconfig TOML file against an ncio-backed FieldSet.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is a fixed constant; it mirrors InMAP's bare version string
// rather than a VCS-embedded one.
const version = "0.1.0"

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// root is the main command.
var root = &cobra.Command{
	Use:   "parcels",
	Short: "A Lagrangian particle-tracking engine.",
	Long: `parcels advects particles through a gridded velocity field.
Use the subcommands specified below to run a simulation or print the
version number.`,
	DisableAutoGenTag: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("parcels v%s\n", version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run [config.toml]",
	Short: "Run a simulation described by a TOML run file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation(args[0])
	},
	DisableAutoGenTag: true,
}

func init() {
	root.AddCommand(versionCmd)
	root.AddCommand(runCmd)
}
