// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package constraint

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/curioloop/nlexpr/ad"
	"github.com/curioloop/nlexpr/expr"
)

// Linear is the constraint lb <= Σ a[i]·x[v[i]] + offset <= ub.
// Its Jacobian is constant and it has no Hessian entries.
type Linear struct {
	Base
	lin    linear
	lb, ub float64
}

// NewLinear returns a linear constraint. Zero coefficients are dropped.
func NewLinear(terms map[expr.Var]float64, offset, lb, ub float64) *Linear {
	vars := slices.Sorted(maps.Keys(terms))
	vars = slices.DeleteFunc(vars, func(v expr.Var) bool { return terms[v] == 0 })
	coef := make([]float64, len(vars))
	for i, v := range vars {
		coef[i] = terms[v]
	}
	c := &Linear{lin: linear{vars: vars, coef: coef, offset: offset}, lb: lb, ub: ub}
	c.Base = newBase(c.lin, vars, nil)
	return c
}

// NewBound returns the simple bound row lb <= x[v] <= ub.
func NewBound(v expr.Var, lb, ub float64) *Linear {
	return NewLinear(map[expr.Var]float64{v: 1}, 0, lb, ub)
}

// Expr returns the constraint function as an expression.
func (c *Linear) Expr() expr.Expr {
	var e expr.Expr
	for i, v := range c.lin.vars {
		t := expr.MulConst(c.lin.coef[i], expr.Variable(v))
		e.PlusTake(&t)
	}
	return e.PlusConst(c.lin.offset).Clone()
}

// Lower returns the lower bound.
func (c *Linear) Lower() float64 { return c.lb }

// SetLower sets the lower bound.
func (c *Linear) SetLower(v float64) { c.lb = v }

// Upper returns the upper bound.
func (c *Linear) Upper() float64 { return c.ub }

// SetUpper sets the upper bound.
func (c *Linear) SetUpper(v float64) { c.ub = v }

// String renders the constraint function.
func (c *Linear) String() string { return c.Expr().String() }

type linear struct {
	vars   []expr.Var
	coef   []float64
	offset float64
}

func (l linear) value(_ *ad.Stack, x []float64) (float64, error) {
	r := l.offset
	for i, v := range l.vars {
		if v < 0 || int(v) >= len(x) {
			return 0, fmt.Errorf("%w: variable %d outside point of size %d", expr.ErrMalformed, v, len(x))
		}
		r += l.coef[i] * x[v]
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, &expr.DomainError{Op: expr.OpAdd, Arg: r, Reason: "non-finite result"}
	}
	return r, nil
}

func (l linear) gradient(s *ad.Stack, x, grad []float64) (float64, error) {
	copy(grad, l.coef)
	return l.value(s, x)
}

func (l linear) hessian(s *ad.Stack, x, grad, _ []float64, _ float64) (float64, error) {
	return l.gradient(s, x, grad)
}
