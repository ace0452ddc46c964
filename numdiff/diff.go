// Package numdiff estimates derivatives of scalar functions by finite
// differences. It serves as the reference oracle for analytic derivatives.
package numdiff

import (
	"errors"
	"fmt"
	"math"
)

var (
	eps     = math.Nextafter(1, 2) - 1
	sqrtEps = math.Sqrt(eps)
	cubeEps = math.Cbrt(eps)
	quadEps = math.Sqrt(sqrtEps)
)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use central difference in interior points and the second order accuracy
	// forward or backward difference near the boundary.
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Central:
		return "central"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod returns the method named by s.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "forward":
		return Forward, nil
	case "central":
		return Central, nil
	}
	return 0, fmt.Errorf("numdiff: unknown method %q", s)
}

type Bound [2]float64

// Spec estimates the derivatives of a scalar function of N variables.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
//
// # License
//
//   - https://github.com/scipy/scipy/blob/main/LICENSE.txt
type Spec struct {
	N int
	// Function of which to estimate the derivatives.
	// It may reject a point with an error, which aborts the estimate.
	Func func(x []float64) (float64, error)
	// Finite difference method used for gradients.
	Method Method
	// Lower and upper bounds on independent variables.
	// Gradient steps are adjusted to stay inside them.
	Bounds []Bound
	// Relative step size used to compute absolute step size.
	// The default absolute step size is computed as h = RelStep * sign(x0) * max(1, abs(x0)) with RelStep being selected automatically.
	// Otherwise, absolute step size is computed as h = RelStep * sign(x0) * abs(x0) when RelStep is provided.
	RelStep float64
	// Absolute step size to use, possibly adjusted to fit into the bounds.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64

	absStep []float64
	oneSide []bool
}

// Check the parameters and prepare the step buffers.
func (s *Spec) Check(x0 []float64) error {
	switch {
	case s.N <= 0:
		return errors.New("numdiff: non-positive dimension")
	case s.Method != Forward && s.Method != Central:
		return errors.New("numdiff: unknown method")
	case s.Func == nil:
		return errors.New("numdiff: function is required")
	case s.N != len(x0):
		return errors.New("numdiff: invalid x0 dimension")
	}

	if s.Bounds != nil {
		if len(s.Bounds) != s.N {
			return errors.New("numdiff: invalid bound dimension")
		}
		for i := range s.Bounds {
			b := &s.Bounds[i]
			if math.IsNaN(b[0]) {
				b[0] = math.Inf(-1)
			}
			if math.IsNaN(b[1]) {
				b[1] = math.Inf(1)
			}
			if b[0] > b[1] {
				return errors.New("numdiff: invalid bound range")
			}
			if x0[i] < b[0] || x0[i] > b[1] {
				return errors.New("numdiff: x0 violates bound constraints")
			}
		}
	}

	if len(s.absStep) != s.N {
		s.absStep = make([]float64, s.N)
	}
	if len(s.oneSide) != s.N*int(s.Method) {
		s.oneSide = make([]bool, s.N*int(s.Method))
	}
	return nil
}

func (s *Spec) bounded() bool {
	for _, b := range s.Bounds {
		if !math.IsInf(b[0], 0) || !math.IsInf(b[1], 0) {
			return true
		}
	}
	return false
}

// Gradient writes the finite difference estimate of ∇f(x0) to grad.
// x0 is perturbed during the estimate and restored before returning.
func (s *Spec) Gradient(x0, grad []float64) error {
	if err := s.Check(x0); err != nil {
		return err
	}
	if len(grad) != s.N {
		return errors.New("numdiff: invalid gradient dimension")
	}

	s.absoluteStep(x0)
	s.adjustToBounds(x0, s.bounded())

	f0, err := s.Func(x0)
	if err != nil {
		return err
	}
	if s.Method == Central {
		return s.central(x0, f0, grad)
	}
	return s.forward(x0, f0, grad)
}

func (s *Spec) adjustToBounds(x0 []float64, bnd bool) {
	h, o := s.absStep, s.oneSide
	if s.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
		clear(o)
	}

	if !bnd {
		return
	}

	b := s.Bounds
	if len(x0) != len(b) || len(x0) != len(h) {
		panic("bound check error")
	}

	for i, x := range x0 {
		lb, ub := b[i][0], b[i][1]
		ld, ud := x-lb, ub-x
		if s.Method == Forward {
			h0 := h[i]
			violated := x+h0 < lb || x+h0 > ub
			fitting := math.Abs(h0) < math.Max(ld, ud)
			switch {
			case violated && fitting:
				h[i] = -h0
			case !fitting && ud >= ld:
				h[i] = ud
			case !fitting:
				h[i] = -ld
			}
			continue
		}
		central := ld >= h[i] && ud >= h[i]
		if !central {
			if ud >= ld {
				h[i] = math.Min(h[i], 0.5*ud)
			} else {
				h[i] = -math.Min(h[i], 0.5*ld)
			}
			o[i] = true
		}
		if minDist := math.Min(ud, ld); !central && math.Abs(h[i]) <= minDist {
			h[i] = minDist
			o[i] = false
		}
	}
}

func (s *Spec) absoluteStep(x0 []float64) {
	h := s.absStep
	if len(h) != len(x0) {
		panic("bound check error")
	}

	var e float64
	switch s.Method {
	case Forward:
		e = sqrtEps
	case Central:
		e = cubeEps
	default:
		panic("unknown method")
	}

	for i, v := range x0 {
		auto := math.Copysign(e, v) * math.Max(1.0, math.Abs(v))
		step := s.AbsStep
		switch {
		case step == 0 && s.RelStep == 0:
			step = auto
		case step == 0:
			step = math.Copysign(s.RelStep, v) * math.Abs(v)
		}
		if (v+step)-v == 0 {
			step = auto
		}
		h[i] = step
	}
}

func (s *Spec) forward(x0 []float64, f0 float64, grad []float64) error {
	for i, h := range s.absStep {
		t := x0[i]
		x0[i] = t + h
		f, err := s.Func(x0)
		x0[i] = t
		if err != nil {
			return err
		}
		grad[i] = (f - f0) / h
	}
	return nil
}

func (s *Spec) central(x0 []float64, f0 float64, grad []float64) error {
	var f1, f2 float64
	var err error
	for i, h := range s.absStep {
		t := x0[i]
		if s.oneSide[i] {
			x0[i] = t + h
			if f1, err = s.Func(x0); err == nil {
				x0[i] = t + 2*h
				f2, err = s.Func(x0)
			}
			x0[i] = t
			if err != nil {
				return err
			}
			grad[i] = (4*f1 - 3*f0 - f2) / (2 * h)
			continue
		}
		x0[i] = t - h
		if f1, err = s.Func(x0); err == nil {
			x0[i] = t + h
			f2, err = s.Func(x0)
		}
		x0[i] = t
		if err != nil {
			return err
		}
		grad[i] = (f2 - f1) / (2 * h)
	}
	return nil
}

// Hessian writes the estimate of ∂²f/∂x[p[0]]∂x[p[1]] at x0 to hess[k] for
// each pairs[k], using second order central differences with steps of
// eps^(1/4)·max(1,|x|). Bounds are not honoured.
func (s *Spec) Hessian(x0 []float64, pairs [][2]int, hess []float64) error {
	if err := s.Check(x0); err != nil {
		return err
	}
	if len(hess) != len(pairs) {
		return errors.New("numdiff: invalid hessian dimension")
	}
	f0, err := s.Func(x0)
	if err != nil {
		return err
	}

	at := func(i int, hi float64, j int, hj float64) (float64, error) {
		ti, tj := x0[i], x0[j]
		x0[i] += hi
		x0[j] += hj
		f, err := s.Func(x0)
		x0[i], x0[j] = ti, tj
		return f, err
	}
	step := func(i int) float64 {
		return quadEps * math.Max(1, math.Abs(x0[i]))
	}

	for k, p := range pairs {
		i, j := p[0], p[1]
		if i < 0 || i >= s.N || j < 0 || j >= s.N {
			return fmt.Errorf("numdiff: pair %v out of range", p)
		}
		hi, hj := step(i), step(j)
		if i == j {
			fp, err := at(i, hi, i, 0)
			if err != nil {
				return err
			}
			fm, err := at(i, -hi, i, 0)
			if err != nil {
				return err
			}
			hess[k] = (fp - 2*f0 + fm) / (hi * hi)
			continue
		}
		var f [4]float64
		for c, sg := range [4][2]float64{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}} {
			if f[c], err = at(i, sg[0]*hi, j, sg[1]*hj); err != nil {
				return err
			}
		}
		hess[k] = (f[0] - f[1] - f[2] + f[3]) / (4 * hi * hj)
	}
	return nil
}
