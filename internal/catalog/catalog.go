// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog holds small reference problems used by the adcheck tool
// and the tests.
package catalog

import (
	"math"
	"slices"
	"strings"

	"github.com/curioloop/nlexpr/constraint"
	"github.com/curioloop/nlexpr/expr"
	"github.com/curioloop/nlexpr/problem"
)

// Entry describes a built-in problem.
type Entry struct {
	Name        string
	Description string
	// X0 is the starting point, Lambda the multipliers used to weight the
	// constraint Hessians when checking derivatives.
	X0     []float64
	Lambda []float64
	build  func() (constraint.Constraint, []constraint.Constraint)
}

// Build returns a fresh problem that has not been set up.
func (e Entry) Build() *problem.Problem {
	obj, cons := e.build()
	return problem.New(len(e.X0), obj, cons...)
}

var entries = []Entry{
	{
		Name:        "hs071",
		Description: "Hock-Schittkowski problem 71",
		X0:          []float64{1, 5, 5, 1},
		Lambda:      []float64{0.5, -1.5},
		build:       hs071,
	},
	{
		Name:        "rosenbrock",
		Description: "Rosenbrock valley, unconstrained",
		X0:          []float64{-1.2, 1},
		build:       rosenbrock,
	},
	{
		Name:        "scenario",
		Description: "2·x1 + x1·x2 with a quotient row",
		X0:          []float64{0, 3, 4},
		Lambda:      []float64{1},
		build:       scenario,
	},
	{
		Name:        "circle",
		Description: "linear objective on the unit disc with linear and bound rows",
		X0:          []float64{0.3, -0.4},
		Lambda:      []float64{2, 1, 1},
		build:       circle,
	},
}

// All returns the entries ordered by name.
func All() []Entry {
	all := slices.Clone(entries)
	slices.SortFunc(all, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return all
}

// Lookup returns the entry called name.
func Lookup(name string) (Entry, bool) {
	i := slices.IndexFunc(entries, func(e Entry) bool { return e.Name == name })
	if i < 0 {
		return Entry{}, false
	}
	return entries[i], true
}

func vars(n int) []expr.Expr {
	x := make([]expr.Expr, n)
	for i := range x {
		x[i] = expr.Variable(expr.Var(i))
	}
	return x
}

// min x0·x3·(x0+x1+x2) + x2
// s.t. x0·x1·x2·x3 >= 25, Σ xi² = 40
func hs071() (constraint.Constraint, []constraint.Constraint) {
	x := vars(4)
	f := expr.Add(expr.Product(x[0], x[3], expr.Sum(x[0], x[1], x[2])), x[2])
	var sq expr.Expr
	for _, xi := range x {
		sq.PlusEqual(expr.Pow(xi, 2))
	}
	return constraint.NewObjective(f), []constraint.Constraint{
		constraint.New(expr.Product(x...), 25, math.Inf(1)),
		constraint.New(sq, 40, 40),
	}
}

// min (1-x0)² + 100·(x1-x0²)²
func rosenbrock() (constraint.Constraint, []constraint.Constraint) {
	x := vars(2)
	f := expr.Add(
		expr.Pow(expr.Sub(expr.Const(1), x[0]), 2),
		expr.MulConst(100, expr.Pow(expr.Sub(x[1], expr.Pow(x[0], 2)), 2)),
	)
	return constraint.NewObjective(f), nil
}

func scenario() (constraint.Constraint, []constraint.Constraint) {
	x := vars(3)
	f := expr.Add(expr.MulConst(2, x[1]), expr.Mul(x[1], x[2]))
	return constraint.NewObjective(f), []constraint.Constraint{
		constraint.New(expr.Div(x[1], x[2]), math.Inf(-1), 1),
	}
}

// min x0 + x1 s.t. x0² + x1² <= 1, x0 - x1 <= 0.5, -1 <= x0 <= 1
func circle() (constraint.Constraint, []constraint.Constraint) {
	x := vars(2)
	return constraint.NewObjective(expr.Add(x[0], x[1])), []constraint.Constraint{
		constraint.New(expr.Add(expr.Pow(x[0], 2), expr.Pow(x[1], 2)), math.Inf(-1), 1),
		constraint.NewLinear(map[expr.Var]float64{0: 1, 1: -1}, 0, math.Inf(-1), 0.5),
		constraint.NewBound(0, -1, 1),
	}
}
