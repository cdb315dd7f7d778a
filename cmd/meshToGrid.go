/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/meshconv/convert"
	"github.com/notargets/meshconv/grid/vtu"
	"github.com/notargets/meshconv/types"
)

// NewMeshToGridCmd returns the mesh-to-grid command
func NewMeshToGridCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "mesh-to-grid <meshfile> <gridfile>",
		Short: "Convert the tetrahedra of a keyword file into a .vtu grid",
		Long: `
Reads the *NODE and *ELEMENT_SOLID blocks of an LS-DYNA keyword file and writes
them as a VTK XML unstructured grid. Node ids are renumbered 1..N in file order
unless --renumber=false is given.

mesh-to-grid mesh.k mesh.vtu`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return types.NewUsageError("mesh-to-grid needs <meshfile> <gridfile>, have %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			var format vtu.Format
			if format, err = vtu.ParseFormat(viper.GetString("encoding")); err != nil {
				return types.NewUsageError("%v", err)
			}
			return convert.MeshToGrid(args[0], args[1], convert.MeshToGridOptions{
				Renumber: viper.GetBool("renumber"),
				KeepIDs:  viper.GetBool("keep-ids"),
				Codec:    vtu.New(format),
				Logger:   logger,
			})
		},
	}
	c.Flags().Bool("renumber", true, "number nodes 1..N in the order they are read")
	c.Flags().Bool("keep-ids", false, "store node and element ids as vtkOriginalPointIds / vtkOriginalCellIds")
	c.Flags().StringP("encoding", "e", vtu.ASCII.String(), "DataArray encoding: ascii or binary")
	return c
}
