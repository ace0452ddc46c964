// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package problem_test

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/nlexpr/constraint"
	"github.com/curioloop/nlexpr/expr"
	"github.com/curioloop/nlexpr/internal/catalog"
	"github.com/curioloop/nlexpr/numdiff"
	"github.com/curioloop/nlexpr/problem"
)

func setup(t *testing.T, name string, workers int) (*problem.Problem, catalog.Entry) {
	t.Helper()
	e, ok := catalog.Lookup(name)
	require.True(t, ok, name)
	p := e.Build()
	p.Config.Workers = workers
	p.Logger = slog.New(slog.DiscardHandler)
	require.NoError(t, p.Setup())
	return p, e
}

func TestLayout(t *testing.T) {
	p, _ := setup(t, "hs071", 1)

	iRow, jCol := make([]int, p.NNZJac()), make([]int, p.NNZJac())
	p.JacStructure(iRow, jCol)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 1}, iRow)
	assert.Equal(t, []int{0, 1, 2, 3, 0, 1, 2, 3}, jCol)

	n := p.NNZHess()
	require.Equal(t, 10, n)
	hRow, hCol := make([]int, n), make([]int, n)
	p.HessStructure(hRow, hCol)
	seen := make(map[[2]int]bool)
	for k := range n {
		assert.GreaterOrEqual(t, hRow[k], hCol[k])
		assert.False(t, seen[[2]int{hRow[k], hCol[k]}], "duplicate (%d,%d)", hRow[k], hCol[k])
		seen[[2]int{hRow[k], hCol[k]}] = true
	}
	assert.True(t, p.HessMap().Frozen())

	gL, gU := make([]float64, 2), make([]float64, 2)
	p.Bounds(gL, gU)
	assert.Equal(t, []float64{25, 40}, gL)
	assert.Equal(t, []float64{math.Inf(1), 40}, gU)
}

func TestEvalGradF(t *testing.T) {
	p, e := setup(t, "hs071", 1)
	grad := make([]float64, p.N)
	require.NoError(t, p.EvalGradF(e.X0, grad))
	assert.Equal(t, []float64{12, 1, 2, 11}, grad)
}

func TestLagrangianHessian(t *testing.T) {
	for _, name := range []string{"hs071", "rosenbrock", "circle", "scenario"} {
		t.Run(name, func(t *testing.T) {
			p, e := setup(t, name, 1)
			const sigma = 0.75

			values := make([]float64, p.NNZHess())
			for i := range values {
				values[i] = math.NaN()
			}
			require.NoError(t, p.EvalH(e.X0, sigma, e.Lambda, values))

			lagrangian := func(x []float64) (float64, error) {
				return p.Lagrangian(x, sigma, e.Lambda)
			}
			nd := numdiff.Spec{N: p.N, Func: lagrangian}
			var idx [][2]int
			for i := range p.N {
				for j := range i + 1 {
					idx = append(idx, [2]int{i, j})
				}
			}
			dense := make([]float64, len(idx))
			require.NoError(t, nd.Hessian(e.X0, idx, dense))

			iRow, jCol := make([]int, p.NNZHess()), make([]int, p.NNZHess())
			p.HessStructure(iRow, jCol)
			got := make(map[[2]int]float64)
			for k := range values {
				got[[2]int{iRow[k], jCol[k]}] = values[k]
			}
			for k, ij := range idx {
				tol := 1e-4 * math.Max(1, math.Abs(dense[k]))
				assert.InDelta(t, dense[k], got[ij], tol, "(%d,%d)", ij[0], ij[1])
			}
		})
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	seq, e := setup(t, "hs071", 1)
	par, _ := setup(t, "hs071", 4)
	x := []float64{1.1, 4.2, 3.7, 1.9}

	g1, g2 := make([]float64, 2), make([]float64, 2)
	require.NoError(t, seq.EvalG(x, g1))
	require.NoError(t, par.EvalG(x, g2))
	assert.Equal(t, g1, g2)

	j1, j2 := make([]float64, seq.NNZJac()), make([]float64, par.NNZJac())
	require.NoError(t, seq.EvalJac(x, j1))
	require.NoError(t, par.EvalJac(x, j2))
	assert.Equal(t, j1, j2)

	h1, h2 := make([]float64, seq.NNZHess()), make([]float64, par.NNZHess())
	for range 2 {
		require.NoError(t, seq.EvalH(x, 2, e.Lambda, h1))
		require.NoError(t, par.EvalH(x, 2, e.Lambda, h2))
		assert.Equal(t, h1, h2)
	}
}

func TestDomainErrorPropagates(t *testing.T) {
	for _, workers := range []int{1, 3} {
		p, _ := setup(t, "scenario", workers)
		x := []float64{0, 1, 0}
		assert.ErrorIs(t, p.EvalG(x, make([]float64, 1)), expr.ErrDomain)
		assert.ErrorIs(t, p.EvalJac(x, make([]float64, p.NNZJac())), expr.ErrDomain)
		assert.ErrorIs(t, p.EvalH(x, 1, []float64{1}, make([]float64, p.NNZHess())), expr.ErrDomain)

		f, err := p.EvalF(x)
		require.NoError(t, err)
		assert.Equal(t, 2.0, f)
	}
}

func TestSetupErrors(t *testing.T) {
	p, _ := setup(t, "rosenbrock", 1)
	assert.Panics(t, func() { _ = p.Setup() })

	e, _ := catalog.Lookup("rosenbrock")
	fresh := e.Build()
	assert.Panics(t, func() { _, _ = fresh.EvalF(e.X0) })

	x3 := expr.Variable(3)
	bad := problem.New(2, constraint.NewObjective(x3))
	bad.Logger = slog.New(slog.DiscardHandler)
	assert.Error(t, bad.Setup())

	bad = problem.New(2, nil)
	assert.Error(t, bad.Setup())

	bad = problem.New(2, constraint.NewObjective(expr.Variable(0)))
	bad.Config.Workers = 0
	assert.ErrorIs(t, bad.Setup(), problem.ErrInvalidConfig)
}

func TestSetupLogs(t *testing.T) {
	var buf bytes.Buffer
	e, _ := catalog.Lookup("circle")
	p := e.Build()
	p.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	require.NoError(t, p.Setup())

	out := buf.String()
	assert.Contains(t, out, "problem ready")
	assert.Contains(t, out, "nnz_hess=2")
	assert.Contains(t, out, "constraint ready")
	assert.Contains(t, out, "row=-1")
}

func TestIterate(t *testing.T) {
	it := &problem.Iterate{ObjFactor: 3, Lambda: []float64{4, 5}}
	assert.Equal(t, 3.0, it.Lam(constraint.ObjectiveRow))
	assert.Equal(t, 5.0, it.Lam(1))
}
