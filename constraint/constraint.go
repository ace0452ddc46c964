// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package constraint adapts expressions to the callbacks of a sparse
// nonlinear solver.
//
// A Constraint owns the derivative buffers of one constraint row (or of the
// objective) and goes through three states:
//
//	unbound --SetStack/SetSolution--> wired --Init--> ready
//
// Init registers the local Hessian pattern in the shared hessian.PosMap and
// fixes the sparse layout. After that, Eval, EvalJac and EvalHess only fill
// values: EvalJac writes the row in JacEntries order and EvalHess adds its
// entries into the global Hessian at the positions resolved by Init.
package constraint

import (
	"github.com/curioloop/nlexpr/ad"
	"github.com/curioloop/nlexpr/expr"
	"github.com/curioloop/nlexpr/hessian"
)

// ObjectiveRow is the row position of the objective.
const ObjectiveRow = -1

// Solution exposes the multipliers of the current iterate.
// Lam(ObjectiveRow) is the objective factor.
type Solution interface {
	Lam(pos int) float64
}

// Constraint is the solver facing contract of one constraint or objective.
type Constraint interface {
	// Eval returns the value at x.
	Eval(x []float64) (float64, error)
	// EvalJac writes the gradient at x to values[0:NNZJac()].
	EvalJac(x, values []float64) error
	// EvalHess adds lambda times the Hessian at x to values at the
	// positions of HessMap.
	EvalHess(x, values []float64, lambda float64) error
	// SetEvals refreshes G, Jac and Hess at x, scaling the Hessian by Lam.
	SetEvals(x []float64) error

	Lower() float64
	SetLower(v float64)
	Upper() float64
	SetUpper(v float64)

	NNZJac() int
	// JacEntries returns the variables of the Jacobian row in value order.
	JacEntries() []expr.Var
	// JacStructure writes the column of every Jacobian entry to jCol.
	JacStructure(jCol []int)
	// HessEntries returns the lower triangle pairs of the local Hessian.
	HessEntries() []expr.Pair

	SetStack(s *ad.Stack)
	SetSolution(sol Solution)
	// Init resolves the global Hessian positions of HessEntries.
	Init(m *hessian.PosMap)

	SetPos(pos int)
	Pos() int
	// Lam returns the multiplier of this row, or 1 without a Solution.
	Lam() float64

	G() float64
	Jac() []float64
	Hess() []float64
	HessMap() []int

	String() string
}
