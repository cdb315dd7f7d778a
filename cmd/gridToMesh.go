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
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/meshconv/convert"
	"github.com/notargets/meshconv/kfile"
	"github.com/notargets/meshconv/materials"
	"github.com/notargets/meshconv/types"
)

const exampleLaw = `
########################################
Title: "Power law bone"
Bins: 500
LowerEdge: 1.
DensityScale: 6850.
DensityExponent: 1.49
Poisson: 0.3
SectionType: 16
########################################
`

// NewGridToMeshCmd returns the grid-to-mesh command
func NewGridToMeshCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "grid-to-mesh <gridfile> <meshfile> <matsfile> <offset>",
		Short: "Bin the stiffness of a .vtu grid into materials and write keyword files",
		Long: `
Reads a VTK XML unstructured grid with a cell field "E", bins E into equal width
bins and writes the mesh with one part per occupied bin, plus a materials file
with the matching *PART, *SECTION_SOLID and *MAT_ELASTIC cards. offset is added
to every node, element, part, section and material id and may be negative.
Flags go before the arguments.

The material law can be changed with --materials law.yaml, for example:
` + exampleLaw,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 4 {
				return types.NewUsageError("grid-to-mesh needs <gridfile> <meshfile> <matsfile> <offset>, have %d arguments", len(args))
			}
			if _, err := strconv.Atoi(args[3]); err != nil {
				return types.NewUsageError("offset must be an integer, have %q", args[3])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			var (
				padding kfile.Padding
				law     = materials.DefaultLaw()
			)
			offset, _ := strconv.Atoi(args[3])
			if padding, err = kfile.ParsePadding(viper.GetString("padding")); err != nil {
				return types.NewUsageError("%v", err)
			}
			if path := viper.GetString("materials"); path != "" {
				if law, err = materials.ReadLaw(path); err != nil {
					return
				}
			}
			if bins := viper.GetInt("bins"); bins > 0 {
				law.Bins = bins
			}
			return convert.GridToMesh(args[0], args[1], args[2], convert.GridToMeshOptions{
				Offset:  offset,
				Padding: padding,
				Law:     law,
				Logger:  logger,
			})
		},
	}
	c.Flags().SetInterspersed(false)
	c.Flags().StringP("padding", "p", kfile.PadRepeatLast.String(), "fill of node slots 5-8: repeat-last or zero")
	c.Flags().StringP("materials", "m", "", "YAML file with the material law")
	c.Flags().Int("bins", 0, "number of stiffness bins (default from the material law, 500)")
	return c
}
