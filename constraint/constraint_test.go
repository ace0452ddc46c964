// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package constraint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/nlexpr/ad"
	"github.com/curioloop/nlexpr/expr"
	"github.com/curioloop/nlexpr/hessian"
)

type multipliers map[int]float64

func (m multipliers) Lam(pos int) float64 { return m[pos] }

var (
	x1 = expr.Variable(1)
	x2 = expr.Variable(2)
)

func scenario() expr.Expr { return expr.Add(expr.MulConst(2, x1), expr.Mul(x1, x2)) }

func TestScenario(t *testing.T) {
	c := New(scenario(), math.Inf(-1), 20)
	c.SetStack(ad.NewStack())
	c.SetPos(0)
	m := hessian.NewPosMap()
	c.Init(m)

	x := []float64{0, 3, 4}
	v, err := c.Eval(x)
	require.NoError(t, err)
	assert.Equal(t, 18.0, v)

	assert.Equal(t, []expr.Var{1, 2}, c.JacEntries())
	assert.Equal(t, 2, c.NNZJac())
	jCol := make([]int, c.NNZJac())
	c.JacStructure(jCol)
	assert.Equal(t, []int{1, 2}, jCol)

	jac := make([]float64, c.NNZJac())
	require.NoError(t, c.EvalJac(x, jac))
	assert.Equal(t, []float64{6, 3}, jac)

	assert.Equal(t, []expr.Pair{{Row: 2, Col: 1}}, c.HessEntries())
	assert.Equal(t, []int{0}, c.HessMap())
	values := make([]float64, m.Len())
	require.NoError(t, c.EvalHess(x, values, 2))
	assert.Equal(t, []float64{2}, values)

	require.NoError(t, c.SetEvals(x))
	assert.Equal(t, 18.0, c.G())
	assert.Equal(t, []float64{6, 3}, c.Jac())
	assert.Equal(t, []float64{1}, c.Hess())

	assert.Equal(t, math.Inf(-1), c.Lower())
	assert.Equal(t, 20.0, c.Upper())
	c.SetLower(-1)
	c.SetUpper(30)
	assert.Equal(t, -1.0, c.Lower())
	assert.Equal(t, 30.0, c.Upper())
	assert.Equal(t, "2 * x[1] + x[1] * x[2]", c.String())
}

func TestSharedPairsAccumulate(t *testing.T) {
	obj := NewObjective(expr.Mul(x1, x2))
	c1 := New(expr.Add(expr.Mul(expr.Sin(x1), x2), expr.Mul(x1, x1)), 0, 1)
	c2 := New(expr.Mul(x2, x1), 0, 1)

	m := hessian.NewPosMap()
	obj.Init(m)
	c1.Init(m)
	c2.Init(m)
	m.Freeze()

	cross := expr.Pair{Row: 2, Col: 1}
	k, ok := m.Lookup(cross)
	require.True(t, ok)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []int{k}, obj.HessMap())
	assert.Equal(t, []int{k}, c2.HessMap())
	assert.Contains(t, c1.HessMap(), k)

	x := []float64{0, 0.5, 2}
	values := make([]float64, m.Len())
	values[k] = 100
	require.NoError(t, obj.EvalHess(x, values, 1))
	require.NoError(t, c1.EvalHess(x, values, 2))
	require.NoError(t, c2.EvalHess(x, values, 3))

	// ∂²/∂x1∂x2: obj 1, c1 cos(x1), c2 1
	assert.InDelta(t, 100+1+2*math.Cos(0.5)+3, values[k], 1e-12)
	d, _ := m.Lookup(expr.Pair{Row: 1, Col: 1})
	assert.InDelta(t, 2*(-math.Sin(0.5)*2+2), values[d], 1e-12)
}

func TestLifecycle(t *testing.T) {
	c := New(scenario(), 0, 1)
	x := []float64{0, 3, 4}
	assert.Panics(t, func() { _, _ = c.Eval(x) })
	assert.Panics(t, func() { _ = c.EvalJac(x, make([]float64, 2)) })
	assert.Panics(t, func() { _ = c.EvalHess(x, make([]float64, 1), 1) })

	// private stack allocated by Init
	m := hessian.NewPosMap()
	c.Init(m)
	_, err := c.Eval(x)
	require.NoError(t, err)

	assert.Panics(t, func() { _ = c.EvalJac(x, make([]float64, 1)) })
	assert.Panics(t, func() { c.JacStructure(make([]int, 1)) })

	// re-Init against the frozen map is fine while no pair is new
	m.Freeze()
	assert.NotPanics(t, func() { c.Init(m) })
	other := New(expr.Mul(x1, x1), 0, 1)
	assert.Panics(t, func() { other.Init(m) })
}

func TestLam(t *testing.T) {
	obj := NewObjective(expr.Mul(x1, x2))
	c := New(expr.Mul(x1, x2), 0, 1)
	c.SetPos(3)
	assert.Equal(t, ObjectiveRow, obj.Pos())
	assert.Equal(t, 1.0, c.Lam())

	sol := multipliers{ObjectiveRow: 0.5, 3: -2}
	obj.SetSolution(sol)
	c.SetSolution(sol)
	assert.Equal(t, 0.5, obj.Lam())
	assert.Equal(t, -2.0, c.Lam())

	m := hessian.NewPosMap()
	obj.Init(m)
	c.Init(m)
	x := []float64{0, 3, 4}
	require.NoError(t, obj.SetEvals(x))
	require.NoError(t, c.SetEvals(x))
	assert.Equal(t, []float64{0.5}, obj.Hess())
	assert.Equal(t, []float64{-2}, c.Hess())
	assert.Equal(t, 12.0, c.G())
}

func TestConstantConstraint(t *testing.T) {
	c := New(expr.Const(3), 0, 5)
	c.Init(hessian.NewPosMap())
	assert.Zero(t, c.NNZJac())
	assert.Empty(t, c.HessEntries())

	v, err := c.Eval(nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	require.NoError(t, c.EvalJac(nil, nil))
	require.NoError(t, c.EvalHess(nil, nil, 1))
	assert.Equal(t, "3", c.String())
}

func TestDomainErrorSurfaces(t *testing.T) {
	c := New(expr.Div(x1, x2), 0, 1)
	m := hessian.NewPosMap()
	c.Init(m)

	x := []float64{0, 1, 0}
	_, err := c.Eval(x)
	assert.ErrorIs(t, err, expr.ErrDomain)
	assert.ErrorIs(t, c.EvalJac(x, make([]float64, 2)), expr.ErrDomain)

	values := []float64{7, 7}
	assert.ErrorIs(t, c.EvalHess(x, values, 1), expr.ErrDomain)
	assert.Equal(t, []float64{7, 7}, values)
	assert.ErrorIs(t, c.SetEvals(x), expr.ErrDomain)
}

func TestLinear(t *testing.T) {
	c := NewLinear(map[expr.Var]float64{2: -1, 0: 2, 1: 0}, 1, 0, math.Inf(1))
	c.Init(hessian.NewPosMap())
	assert.Equal(t, []expr.Var{0, 2}, c.JacEntries())
	assert.Empty(t, c.HessEntries())

	x := []float64{3, 100, 4}
	v, err := c.Eval(x)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	jac := make([]float64, 2)
	require.NoError(t, c.EvalJac(x, jac))
	assert.Equal(t, []float64{2, -1}, jac)
	require.NoError(t, c.EvalHess(x, nil, 5))
	assert.Equal(t, "2 * x[0] + (-1) * x[2] + 1", c.String())

	e, err := c.Expr().Eval(x)
	require.NoError(t, err)
	assert.Equal(t, v, e)

	_, err = c.Eval([]float64{3})
	assert.ErrorIs(t, err, expr.ErrMalformed)
	_, err = c.Eval([]float64{math.Inf(1), 0, 0})
	assert.ErrorIs(t, err, expr.ErrDomain)
}

func TestBound(t *testing.T) {
	c := NewBound(4, -1, 1)
	c.SetPos(7)
	c.Init(hessian.NewPosMap())

	x := []float64{0, 0, 0, 0, 0.25}
	require.NoError(t, c.SetEvals(x))
	assert.Equal(t, 0.25, c.G())
	assert.Equal(t, []float64{1}, c.Jac())
	jCol := make([]int, 1)
	c.JacStructure(jCol)
	assert.Equal(t, []int{4}, jCol)
	assert.Equal(t, "x[4]", c.String())
	assert.Equal(t, 7, c.Pos())
}

func TestEvalRefreshesCaches(t *testing.T) {
	c := New(scenario(), math.Inf(-1), 20)
	c.Init(hessian.NewPosMap())

	v, err := c.Eval([]float64{0, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 18.0, v)
	assert.Equal(t, 18.0, c.G())

	jac := make([]float64, 2)
	require.NoError(t, c.EvalJac([]float64{0, 1, 1}, jac))
	assert.Equal(t, 3.0, c.G())
	assert.Equal(t, []float64{3, 1}, c.Jac())

	values := make([]float64, 1)
	require.NoError(t, c.EvalHess([]float64{0, 2, 5}, values, 3))
	assert.Equal(t, 14.0, c.G())
	assert.Equal(t, []float64{7, 2}, c.Jac())
	assert.Equal(t, []float64{3}, c.Hess())
	assert.Equal(t, []float64{3}, values)
}

func TestFailedEvalKeepsCaches(t *testing.T) {
	c := New(expr.Log(x1), 0, math.Inf(1))
	c.Init(hessian.NewPosMap())

	require.NoError(t, c.SetEvals([]float64{0, 2}))
	assert.Equal(t, math.Log(2), c.G())
	assert.Equal(t, []float64{0.5}, c.Jac())
	assert.Equal(t, []float64{-0.25}, c.Hess())

	// gradient is finite, second derivative overflows
	assert.ErrorIs(t, c.SetEvals([]float64{0, 1e-200}), expr.ErrDomain)
	_, err := c.Eval([]float64{0, -1})
	assert.ErrorIs(t, err, expr.ErrDomain)
	assert.ErrorIs(t, c.EvalHess([]float64{0, 1e-200}, make([]float64, 1), 1), expr.ErrDomain)

	assert.Equal(t, math.Log(2), c.G())
	assert.Equal(t, []float64{0.5}, c.Jac())
	assert.Equal(t, []float64{-0.25}, c.Hess())
}

func TestEntriesStable(t *testing.T) {
	c := New(expr.Div(x1, x2), math.Inf(-1), 0)
	m := hessian.NewPosMap()
	c.Init(m)

	vars := c.JacEntries()
	pairs := c.HessEntries()
	require.Equal(t, []expr.Var{1, 2}, vars)
	require.Equal(t, []expr.Pair{{Row: 2, Col: 1}, {Row: 2, Col: 2}}, pairs)

	vars[0], vars[1] = vars[1], vars[0]
	pairs[0], pairs[1] = pairs[1], pairs[0]
	assert.Equal(t, []expr.Var{1, 2}, c.JacEntries())
	assert.Equal(t, []expr.Pair{{Row: 2, Col: 1}, {Row: 2, Col: 2}}, c.HessEntries())

	jCol := make([]int, 2)
	c.JacStructure(jCol)
	assert.Equal(t, []int{1, 2}, jCol)
	assert.Equal(t, []int{0, 1}, c.HessMap())

	c.Init(m)
	assert.Equal(t, []int{0, 1}, c.HessMap())
	assert.Equal(t, 2, m.Len())
}

var (
	_ Constraint = (*ExprConstraint)(nil)
	_ Constraint = (*Linear)(nil)
)
