// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curioloop/nlexpr/constraint"
)

var (
	point   []float64
	verbose bool
)

var checkCmd = &cobra.Command{
	Use:   "check <problem>",
	Short: "Compare analytic derivatives with finite differences",
	Long: `Evaluates every row of the problem at the starting point (or --point) and
compares its Jacobian row and Hessian entries with finite difference
estimates. Exits with an error when any entry is off or missing from the
sparsity pattern.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Float64SliceVar(&point, "point", nil, "Evaluation point (defaults to the problem's starting point)")
	checkCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print passing entries too")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	p, e, err := build(args[0])
	if err != nil {
		return err
	}
	x := e.X0
	if len(point) > 0 {
		x = point
	}
	if len(x) != p.N {
		return fmt.Errorf("point has %d values, problem has %d variables", len(x), p.N)
	}
	cc, err := config.CheckConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	rows := append([]constraint.Constraint{p.Objective}, p.Constraints...)
	for _, c := range rows {
		r, err := constraint.Check(c, x, cc)
		if err != nil {
			return fmt.Errorf("row %d: %w", c.Pos(), err)
		}
		status := "ok"
		if !r.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(out, "row %2d  %-4s  value=% .10e  max_err=%.3e  %s\n", c.Pos(), status, r.Value, r.MaxErr, c)
		for _, en := range r.Entries {
			if verbose || !en.OK {
				fmt.Fprintf(out, "        %s\n", en)
			}
		}
		if !r.Pass {
			failed++
		}
		logger.Debug("row checked", "row", c.Pos(), "entries", len(r.Entries), "max_err", r.MaxErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d row(s) failed the derivative check", failed)
	}
	return nil
}
