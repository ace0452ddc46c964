// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package constraint

import (
	"math"

	"github.com/curioloop/nlexpr/ad"
	"github.com/curioloop/nlexpr/expr"
)

// ExprConstraint is the constraint lb <= e(x) <= ub differentiated by the
// AD engine. Its Jacobian entries are the variables of e and its Hessian
// entries the structural pattern of e.
type ExprConstraint struct {
	Base
	e      expr.Expr
	lb, ub float64
}

// New returns the constraint lb <= e(x) <= ub.
func New(e expr.Expr, lb, ub float64) *ExprConstraint {
	c := &ExprConstraint{e: e, lb: lb, ub: ub}
	if e.IsConstant() {
		c.Base = newBase(constant(e.ConstantValue()), nil, nil)
	} else {
		k := exprKernel{e: e, vars: e.Variables(), pairs: e.HessianPattern()}
		c.Base = newBase(k, k.vars, k.pairs)
	}
	return c
}

// NewObjective returns the objective e placed at ObjectiveRow.
func NewObjective(e expr.Expr) *ExprConstraint {
	c := New(e, math.Inf(-1), math.Inf(1))
	c.SetPos(ObjectiveRow)
	return c
}

// Expr returns the constraint function.
func (c *ExprConstraint) Expr() expr.Expr { return c.e }

// Lower returns the lower bound.
func (c *ExprConstraint) Lower() float64 { return c.lb }

// SetLower sets the lower bound.
func (c *ExprConstraint) SetLower(v float64) { c.lb = v }

// Upper returns the upper bound.
func (c *ExprConstraint) Upper() float64 { return c.ub }

// SetUpper sets the upper bound.
func (c *ExprConstraint) SetUpper(v float64) { c.ub = v }

// String renders the constraint function.
func (c *ExprConstraint) String() string { return c.e.String() }

type exprKernel struct {
	e     expr.Expr
	vars  []expr.Var
	pairs []expr.Pair
}

func (k exprKernel) value(s *ad.Stack, x []float64) (float64, error) {
	return s.Value(k.e, x)
}

func (k exprKernel) gradient(s *ad.Stack, x, grad []float64) (float64, error) {
	return s.Gradient(k.e, x, k.vars, grad)
}

func (k exprKernel) hessian(s *ad.Stack, x, grad, hess []float64, lambda float64) (float64, error) {
	return s.Hessian(k.e, x, k.vars, grad, k.pairs, hess, lambda)
}

// constant has neither Jacobian nor Hessian entries.
type constant float64

func (c constant) value(*ad.Stack, []float64) (float64, error) { return float64(c), nil }

func (c constant) gradient(*ad.Stack, []float64, []float64) (float64, error) {
	return float64(c), nil
}

func (c constant) hessian(*ad.Stack, []float64, []float64, []float64, float64) (float64, error) {
	return float64(c), nil
}
