// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var structureCmd = &cobra.Command{
	Use:   "structure <problem>",
	Short: "Print the sparse Jacobian and Hessian layout",
	Args:  cobra.ExactArgs(1),
	RunE:  runStructure,
}

func init() {
	rootCmd.AddCommand(structureCmd)
}

func runStructure(cmd *cobra.Command, args []string) error {
	p, _, err := build(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "objective: %s\n", p.Objective)
	for i, c := range p.Constraints {
		fmt.Fprintf(out, "g[%d]: %g <= %s <= %g\n", i, c.Lower(), c, c.Upper())
	}

	iRow, jCol := make([]int, p.NNZJac()), make([]int, p.NNZJac())
	p.JacStructure(iRow, jCol)
	fmt.Fprintf(out, "\njacobian (%d nonzeros)\n", p.NNZJac())
	for k := range iRow {
		fmt.Fprintf(out, "  %3d: (%d,%d)\n", k, iRow[k], jCol[k])
	}

	hRow, hCol := make([]int, p.NNZHess()), make([]int, p.NNZHess())
	p.HessStructure(hRow, hCol)
	fmt.Fprintf(out, "\nhessian (%d nonzeros)\n", p.NNZHess())
	for k := range hRow {
		fmt.Fprintf(out, "  %3d: (%d,%d)\n", k, hRow[k], hCol[k])
	}
	return nil
}
