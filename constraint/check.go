// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package constraint

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/nlexpr/expr"
	"github.com/curioloop/nlexpr/numdiff"
)

// CheckConfig controls the derivative check.
type CheckConfig struct {
	Method  numdiff.Method
	RelStep float64
	// Tolerances on |analytic - numeric| / max(1, |numeric|).
	JacTol  float64
	HessTol float64
}

// DefaultCheckConfig returns central differences with tolerances suited to
// their truncation error.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{Method: numdiff.Central, JacTol: 1e-6, HessTol: 1e-4}
}

// CheckEntry compares one derivative entry.
type CheckEntry struct {
	Hess     bool
	Row, Col expr.Var // Row is unused for Jacobian entries
	Analytic float64
	Numeric  float64
	Err      float64
	// Missing marks a numerically nonzero entry absent from the sparsity pattern.
	Missing bool
	OK      bool
}

func (e CheckEntry) String() string {
	status := "ok"
	switch {
	case e.Missing:
		status = "MISSING"
	case !e.OK:
		status = "FAIL"
	}
	name := "d/d" + expr.VarName(e.Col)
	if e.Hess {
		name = "d2/d" + expr.VarName(e.Row) + "d" + expr.VarName(e.Col)
	}
	return fmt.Sprintf("%-24s analytic=% .10e numeric=% .10e err=%.3e %s", name, e.Analytic, e.Numeric, e.Err, status)
}

// Report is the outcome of Check.
type Report struct {
	Value   float64
	Entries []CheckEntry
	MaxErr  float64
	Pass    bool
}

// Failed returns the entries that did not pass.
func (r *Report) Failed() []CheckEntry {
	return slices.DeleteFunc(slices.Clone(r.Entries), func(e CheckEntry) bool { return e.OK })
}

// Check compares the analytic Jacobian row and unit scaled Hessian of an
// initialised constraint with finite difference estimates at x.
// Numerically nonzero first derivatives outside JacEntries are reported as
// missing.
func Check(c Constraint, x []float64, cfg CheckConfig) (*Report, error) {
	if len(x) == 0 {
		return nil, errors.New("constraint: empty point")
	}
	x = slices.Clone(x)
	v, err := c.Eval(x)
	if err != nil {
		return nil, err
	}
	r := &Report{Value: v, Pass: true}
	add := func(e CheckEntry, tol float64) {
		e.Err = math.Abs(e.Analytic-e.Numeric) / math.Max(1, math.Abs(e.Numeric))
		e.OK = !e.Missing && e.Err <= tol
		r.MaxErr = math.Max(r.MaxErr, e.Err)
		r.Pass = r.Pass && e.OK
		r.Entries = append(r.Entries, e)
	}

	nd := numdiff.Spec{N: len(x), Func: c.Eval, Method: cfg.Method, RelStep: cfg.RelStep}

	vars := c.JacEntries()
	jac := make([]float64, c.NNZJac())
	if err = c.EvalJac(x, jac); err != nil {
		return nil, err
	}
	grad := make([]float64, len(x))
	if err = nd.Gradient(x, grad); err != nil {
		return nil, fmt.Errorf("constraint: finite difference gradient: %w", err)
	}
	for i, fd := range grad {
		k := slices.Index(vars, expr.Var(i))
		switch {
		case k >= 0:
			add(CheckEntry{Col: vars[k], Analytic: jac[k], Numeric: fd}, cfg.JacTol)
		case math.Abs(fd) > cfg.JacTol:
			add(CheckEntry{Col: expr.Var(i), Numeric: fd, Missing: true}, cfg.JacTol)
		}
	}

	pairs := c.HessEntries()
	if len(pairs) == 0 {
		return r, nil
	}
	hessMap := c.HessMap()
	values := make([]float64, slices.Max(hessMap)+1)
	if err = c.EvalHess(x, values, 1); err != nil {
		return nil, err
	}
	idx := make([][2]int, len(pairs))
	for k, p := range pairs {
		idx[k] = [2]int{int(p.Row), int(p.Col)}
	}
	fd := make([]float64, len(pairs))
	if err = nd.Hessian(x, idx, fd); err != nil {
		return nil, fmt.Errorf("constraint: finite difference hessian: %w", err)
	}
	for k, p := range pairs {
		add(CheckEntry{Hess: true, Row: p.Row, Col: p.Col, Analytic: values[hessMap[k]], Numeric: fd[k]}, cfg.HessTol)
	}
	return r, nil
}
