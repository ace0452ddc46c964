// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package problem assembles an objective and constraints into the sparse
// callbacks of an interior point solver: row positions, the combined
// Jacobian layout, the shared Lagrangian Hessian layout and the evaluation
// of all of them at a candidate point.
package problem

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/curioloop/nlexpr/ad"
	"github.com/curioloop/nlexpr/constraint"
	"github.com/curioloop/nlexpr/hessian"
)

// Iterate is the Solution shared by every constraint of a Problem.
type Iterate struct {
	ObjFactor float64
	Lambda    []float64
}

// Lam returns the objective factor for constraint.ObjectiveRow and the
// multiplier of row pos otherwise.
func (it *Iterate) Lam(pos int) float64 {
	if pos == constraint.ObjectiveRow {
		return it.ObjFactor
	}
	return it.Lambda[pos]
}

// Problem is an objective over N variables subject to constraint rows.
//
// Setup must be called once before any evaluation. Afterwards the layout
// is fixed and every Eval method only fills values.
type Problem struct {
	N           int
	Objective   constraint.Constraint
	Constraints []constraint.Constraint

	Config  Config
	Logger  *slog.Logger
	Metrics *Metrics

	hess   *hessian.PosMap
	iter   Iterate
	jacOff []int
	objJac []float64
	objCol []int
	ready  bool
}

// New returns a problem using DefaultConfig.
func New(n int, objective constraint.Constraint, constraints ...constraint.Constraint) *Problem {
	return &Problem{N: n, Objective: objective, Constraints: constraints, Config: DefaultConfig()}
}

func (p *Problem) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Setup assigns row positions, wires a private AD stack and the shared
// Iterate into every constraint and initialises them, objective first,
// against one Hessian position map which is then frozen.
// It panics when called twice.
func (p *Problem) Setup() error {
	if p.ready {
		panic("problem: setup called twice")
	}
	if err := p.Config.Validate(); err != nil {
		return err
	}
	if p.Objective == nil {
		return errors.New("problem: objective is required")
	}

	p.hess = hessian.NewPosMap()
	p.iter = Iterate{ObjFactor: 1, Lambda: make([]float64, len(p.Constraints))}
	for i := range p.iter.Lambda {
		p.iter.Lambda[i] = 1
	}

	p.Objective.SetPos(constraint.ObjectiveRow)
	for i, c := range p.Constraints {
		c.SetPos(i)
	}

	log := p.logger()
	p.jacOff = make([]int, len(p.Constraints)+1)
	for i, c := range p.rows() {
		c.SetStack(ad.NewStack())
		c.SetSolution(&p.iter)
		c.Init(p.hess)
		for _, v := range c.JacEntries() {
			if v < 0 || int(v) >= p.N {
				return fmt.Errorf("problem: row %d references variable %d outside %d variables", c.Pos(), v, p.N)
			}
		}
		if i > 0 {
			p.jacOff[i] = p.jacOff[i-1] + c.NNZJac()
		}
		log.Debug("constraint ready", "row", c.Pos(), "nnz_jac", c.NNZJac(), "nnz_hess", len(c.HessEntries()), "expr", c.String())
	}
	p.hess.Freeze()
	p.objJac = make([]float64, p.Objective.NNZJac())
	p.objCol = make([]int, p.Objective.NNZJac())
	p.Objective.JacStructure(p.objCol)
	p.ready = true

	log.Info("problem ready",
		"vars", p.N,
		"rows", len(p.Constraints),
		"nnz_jac", p.NNZJac(),
		"nnz_hess", p.NNZHess(),
		"workers", p.Config.Workers)
	return nil
}

// rows returns the objective followed by the constraints.
// For i > 0 jacOff[i-1] is the Jacobian offset of rows()[i].
func (p *Problem) rows() []constraint.Constraint {
	return append([]constraint.Constraint{p.Objective}, p.Constraints...)
}

func (p *Problem) mustReady() {
	if !p.ready {
		panic("problem: evaluated before setup")
	}
}

// HessMap returns the shared Hessian position map.
func (p *Problem) HessMap() *hessian.PosMap { return p.hess }

// NNZJac returns the number of nonzeros of the constraint Jacobian.
func (p *Problem) NNZJac() int {
	p.mustReady()
	return p.jacOff[len(p.Constraints)]
}

// NNZHess returns the number of nonzeros of the lower triangle Lagrangian Hessian.
func (p *Problem) NNZHess() int {
	p.mustReady()
	return p.hess.Len()
}

// Bounds writes the constraint bounds to gL and gU.
func (p *Problem) Bounds(gL, gU []float64) {
	for i, c := range p.Constraints {
		gL[i], gU[i] = c.Lower(), c.Upper()
	}
}

// JacStructure writes the row and column of every Jacobian nonzero.
func (p *Problem) JacStructure(iRow, jCol []int) {
	p.mustReady()
	if len(iRow) < p.NNZJac() || len(jCol) < p.NNZJac() {
		panic("problem: jacobian structure storage shorter than nonzeros")
	}
	for i, c := range p.Constraints {
		off := p.jacOff[i]
		c.JacStructure(jCol[off:])
		for k := range c.NNZJac() {
			iRow[off+k] = i
		}
	}
}

// HessStructure writes the row and column of every Hessian nonzero.
func (p *Problem) HessStructure(iRow, jCol []int) {
	p.mustReady()
	p.hess.Structure(iRow, jCol)
}

// EvalF returns the objective at x.
func (p *Problem) EvalF(x []float64) (float64, error) {
	p.mustReady()
	f, err := p.Objective.Eval(x)
	p.Metrics.observe(KindF, err)
	return f, err
}

// EvalGradF writes the dense objective gradient at x to grad.
func (p *Problem) EvalGradF(x, grad []float64) error {
	p.mustReady()
	err := p.Objective.EvalJac(x, p.objJac)
	p.Metrics.observe(KindGradF, err)
	if err != nil {
		return err
	}
	clear(grad[:p.N])
	for k, j := range p.objCol {
		grad[j] = p.objJac[k]
	}
	return nil
}

// EvalG writes the constraint values at x to g.
func (p *Problem) EvalG(x, g []float64) error {
	p.mustReady()
	err := p.each(func(i int, c constraint.Constraint) error {
		v, err := c.Eval(x)
		g[i] = v
		return err
	})
	p.Metrics.observe(KindG, err)
	return err
}

// EvalJac writes the Jacobian nonzeros at x to values in JacStructure order.
func (p *Problem) EvalJac(x, values []float64) error {
	p.mustReady()
	err := p.each(func(i int, c constraint.Constraint) error {
		return c.EvalJac(x, values[p.jacOff[i]:p.jacOff[i+1]])
	})
	p.Metrics.observe(KindJac, err)
	return err
}

// EvalH writes the lower triangle of
//
//	objFactor·∇²f(x) + Σ lambda[i]·∇²g_i(x)
//
// to values in HessStructure order. Contributions to a shared position
// are summed.
func (p *Problem) EvalH(x []float64, objFactor float64, lambda, values []float64) error {
	p.mustReady()
	if len(lambda) < len(p.Constraints) || len(values) < p.NNZHess() {
		panic("problem: hessian storage shorter than layout")
	}
	values = values[:p.NNZHess()]
	clear(values)

	var err error
	if p.Config.Workers > 1 {
		err = p.evalHParallel(x, objFactor, lambda, values)
	} else {
		err = p.Objective.EvalHess(x, values, objFactor)
		for i, c := range p.Constraints {
			if err != nil {
				break
			}
			err = c.EvalHess(x, values, lambda[i])
		}
	}
	p.Metrics.observe(KindH, err)
	return err
}

// evalHParallel refreshes every row concurrently through SetEvals, scaled
// by the multipliers of the shared Iterate, then sums the local Hessians
// into values in row order.
func (p *Problem) evalHParallel(x []float64, objFactor float64, lambda, values []float64) error {
	p.iter.ObjFactor = objFactor
	copy(p.iter.Lambda, lambda)

	rows := p.rows()
	var g errgroup.Group
	g.SetLimit(p.Config.Workers)
	for _, c := range rows {
		g.Go(func() error { return c.SetEvals(x) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, c := range rows {
		hessMap := c.HessMap()
		for k, h := range c.Hess() {
			values[hessMap[k]] += h
		}
	}
	return nil
}

// each runs fn for every constraint row, concurrently when Workers > 1.
func (p *Problem) each(fn func(i int, c constraint.Constraint) error) error {
	if p.Config.Workers <= 1 {
		for i, c := range p.Constraints {
			if err := fn(i, c); err != nil {
				return err
			}
		}
		return nil
	}
	var g errgroup.Group
	g.SetLimit(p.Config.Workers)
	for i, c := range p.Constraints {
		g.Go(func() error { return fn(i, c) })
	}
	return g.Wait()
}

// Lagrangian returns objFactor·f(x) + Σ lambda[i]·g_i(x).
func (p *Problem) Lagrangian(x []float64, objFactor float64, lambda []float64) (float64, error) {
	p.mustReady()
	f, err := p.Objective.Eval(x)
	if err != nil {
		return math.NaN(), err
	}
	l := objFactor * f
	for i, c := range p.Constraints {
		v, err := c.Eval(x)
		if err != nil {
			return math.NaN(), err
		}
		l += lambda[i] * v
	}
	return l, nil
}
