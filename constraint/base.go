// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package constraint

import (
	"slices"

	"github.com/curioloop/nlexpr/ad"
	"github.com/curioloop/nlexpr/expr"
	"github.com/curioloop/nlexpr/hessian"
)

// kernel computes the value and derivatives of a constraint function.
// grad is aligned with the Jacobian entries and hess with the Hessian
// entries of the owning Base.
type kernel interface {
	value(s *ad.Stack, x []float64) (float64, error)
	gradient(s *ad.Stack, x, grad []float64) (float64, error)
	hessian(s *ad.Stack, x, grad, hess []float64, lambda float64) (float64, error)
}

// Base implements the bookkeeping shared by every Constraint: derivative
// buffers, stack and solution wiring, the row position and Init.
// Variants embed it and provide bounds and String.
//
// The cached G, Jac and Hess are refreshed by every successful evaluation.
// A failed evaluation leaves them as they were.
type Base struct {
	k     kernel
	vars  []expr.Var
	pairs []expr.Pair

	g       float64
	jac     []float64
	hess    []float64
	hessMap []int
	pos     int

	// kernels write here first so that a domain error keeps the caches intact
	workJac  []float64
	workHess []float64

	stack *ad.Stack
	sol   Solution
	ready bool
}

func newBase(k kernel, vars []expr.Var, pairs []expr.Pair) Base {
	return Base{k: k, vars: vars, pairs: pairs}
}

func (b *Base) mustReady() {
	if !b.ready {
		panic("constraint: evaluated before Init")
	}
}

// Eval returns the value at x and caches it as G.
func (b *Base) Eval(x []float64) (float64, error) {
	b.mustReady()
	g, err := b.k.value(b.stack, x)
	if err != nil {
		return 0, err
	}
	b.g = g
	return g, nil
}

// EvalJac writes the gradient at x to values[0:NNZJac()] and caches the
// value and gradient as G and Jac.
func (b *Base) EvalJac(x, values []float64) error {
	b.mustReady()
	if len(values) < len(b.vars) {
		panic("constraint: jacobian storage shorter than entries")
	}
	g, err := b.k.gradient(b.stack, x, b.workJac)
	if err != nil {
		return err
	}
	b.g = g
	copy(b.jac, b.workJac)
	copy(values, b.jac)
	return nil
}

// EvalHess adds lambda times the Hessian at x to values at the positions of
// HessMap and caches the value, gradient and scaled local Hessian.
func (b *Base) EvalHess(x, values []float64, lambda float64) error {
	b.mustReady()
	if err := b.refresh(x, lambda); err != nil {
		return err
	}
	for i, h := range b.hess {
		values[b.hessMap[i]] += h
	}
	return nil
}

// SetEvals refreshes G, Jac and Hess at x, scaling the Hessian by Lam.
func (b *Base) SetEvals(x []float64) error {
	b.mustReady()
	return b.refresh(x, b.Lam())
}

func (b *Base) refresh(x []float64, lambda float64) error {
	g, err := b.k.hessian(b.stack, x, b.workJac, b.workHess, lambda)
	if err != nil {
		return err
	}
	b.g = g
	copy(b.jac, b.workJac)
	copy(b.hess, b.workHess)
	return nil
}

// NNZJac returns the number of Jacobian entries of the row.
func (b *Base) NNZJac() int { return len(b.vars) }

// JacEntries returns a copy of the row's variables in value order.
func (b *Base) JacEntries() []expr.Var { return slices.Clone(b.vars) }

// JacStructure writes the column of every Jacobian entry to jCol.
func (b *Base) JacStructure(jCol []int) {
	if len(jCol) < len(b.vars) {
		panic("constraint: jacobian structure storage shorter than entries")
	}
	for i, v := range b.vars {
		jCol[i] = int(v)
	}
}

// HessEntries returns a copy of the lower triangle pairs of the local Hessian.
func (b *Base) HessEntries() []expr.Pair { return slices.Clone(b.pairs) }

// SetStack sets the AD stack used by evaluations.
func (b *Base) SetStack(s *ad.Stack) { b.stack = s }

// SetSolution binds the source of the row multiplier.
func (b *Base) SetSolution(sol Solution) { b.sol = sol }

// Init sizes the derivative buffers and registers the Hessian entries.
// A private stack is allocated when none was set.
// Calling it again re-resolves the positions against m.
func (b *Base) Init(m *hessian.PosMap) {
	if b.stack == nil {
		b.stack = ad.NewStack()
	}
	hessMap := make([]int, len(b.pairs))
	for i, p := range b.pairs {
		hessMap[i] = m.Register(p)
	}
	b.hessMap = hessMap
	b.jac = make([]float64, len(b.vars))
	b.hess = make([]float64, len(b.pairs))
	b.workJac = make([]float64, len(b.vars))
	b.workHess = make([]float64, len(b.pairs))
	b.ready = true
}

// SetPos sets the row position, ObjectiveRow for the objective.
func (b *Base) SetPos(pos int) { b.pos = pos }

// Pos returns the row position.
func (b *Base) Pos() int { return b.pos }

// Lam returns the multiplier of the row, or 1 without a Solution.
func (b *Base) Lam() float64 {
	if b.sol == nil {
		return 1
	}
	return b.sol.Lam(b.pos)
}

// G returns the cached value.
func (b *Base) G() float64 { return b.g }

// Jac returns the cached gradient. It must not be modified.
func (b *Base) Jac() []float64 { return b.jac }

// Hess returns the cached scaled local Hessian. It must not be modified.
func (b *Base) Hess() []float64 { return b.hess }

// HessMap returns the global position of every HessEntries pair.
func (b *Base) HessMap() []int { return b.hessMap }
