// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ad

import (
	"fmt"
	"slices"

	"github.com/curioloop/nlexpr/expr"
)

// Value evaluates e at x.
func (s *Stack) Value(e expr.Expr, x []float64) (float64, error) {
	ops := e.Sequence()
	if err := s.forward(ops, x, nil, orderValue); err != nil {
		return 0, err
	}
	return s.val[len(ops)-1], nil
}

// Gradient evaluates e at x and writes ∂e/∂vars[k] to grad[k].
//
// vars must be ascending. Variables of e missing from vars are held constant.
// It panics if grad is shorter than vars.
func (s *Stack) Gradient(e expr.Expr, x []float64, vars []expr.Var, grad []float64) (float64, error) {
	if len(grad) < len(vars) {
		panic("ad: gradient storage shorter than variables")
	}
	ops := e.Sequence()
	if err := s.forward(ops, x, vars, orderGrad); err != nil {
		return 0, err
	}
	grad = grad[:len(vars)]
	clear(grad)
	s.reverse(len(ops), grad)
	if err := checkFinite(grad); err != nil {
		return 0, err
	}
	return s.val[len(ops)-1], nil
}

// Hessian evaluates e at x, writes the gradient like Gradient and writes
// lambda·∂²e/∂p.Row∂p.Col to hess[k] for each pairs[k].
//
// Both variables of every pair must appear in vars.
// It panics on short storage or an unknown pair variable.
func (s *Stack) Hessian(e expr.Expr, x []float64, vars []expr.Var, grad []float64,
	pairs []expr.Pair, hess []float64, lambda float64) (float64, error) {

	if len(grad) < len(vars) || len(hess) < len(pairs) {
		panic("ad: derivative storage shorter than pattern")
	}
	for _, p := range pairs {
		index(vars, p.Row)
		index(vars, p.Col)
	}
	ops := e.Sequence()
	if err := s.forward(ops, x, vars, orderHess); err != nil {
		return 0, err
	}
	n := len(ops)
	grad = grad[:len(vars)]
	clear(grad)
	s.reverse(n, grad)
	if err := checkFinite(grad); err != nil {
		return 0, err
	}

	hess = hess[:len(pairs)]
	clear(hess)
	s.col = grow(s.col, len(vars))
	for k, v := range vars {
		swept := false
		for j, p := range pairs {
			if p.Col != v {
				continue
			}
			if !swept {
				s.column(n, k)
				swept = true
			}
			hess[j] = lambda * s.col[index(vars, p.Row)]
		}
	}
	if err := checkFinite(hess); err != nil {
		return 0, err
	}
	return s.val[n-1], nil
}

func index(vars []expr.Var, v expr.Var) int {
	k, ok := slices.BinarySearch(vars, v)
	if !ok {
		panic("ad: pair variable " + expr.VarName(v) + " not in variable list")
	}
	return k
}

func checkFinite(vals []float64) error {
	for _, v := range vals {
		if !finite(v) {
			return fmt.Errorf("%w: derivative evaluates to %g", expr.ErrDomain, v)
		}
	}
	return nil
}
