// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ad implements reverse-mode automatic differentiation over the flat
// operator sequences of package expr.
//
// A Stack walks an expression in three kinds of sweeps:
//
//   - forward: node values plus the first and second partials of every
//     operator with respect to its operands;
//   - reverse: first-order adjoints, giving the gradient;
//   - tangent + reverse (second-order adjoint mode): for a direction eₖ a
//     forward tangent sweep followed by a reverse sweep of the second-order
//     adjoints ȧ[u] += ȧ[y]·∂y/∂u + a[y]·(∂²y/∂u² u̇ + ∂²y/∂u∂v v̇), whose
//     leaf accumulators give the Hessian column k.
//
// The Hessian needs one tangent/reverse pair per distinct column variable of
// the requested pattern, so an expression over k variables costs O(k·n).
package ad

import (
	"fmt"
	"slices"

	"github.com/curioloop/nlexpr/expr"
)

// Stack is the reusable scratch space of the AD engine. Buffers grow to the
// largest expression evaluated and are cleared, not reallocated, on reuse.
//
// A Stack is not safe for concurrent use.
type Stack struct {
	val  []float64    // node values
	dot  []float64    // node tangents along the current direction
	adj  []float64    // first-order adjoints
	adot []float64    // second-order adjoints
	d    [][2]float64 // ∂y/∂u, ∂y/∂v
	dd   [][3]float64 // ∂²y/∂u², ∂²y/∂u∂v, ∂²y/∂v²
	kid  [][2]int     // operand nodes
	loc  []int        // position of a variable leaf in the caller's variable list, or -1
	pend []int        // operand stack of the forward sweep
	col  []float64    // Hessian column accumulator per variable
}

// NewStack returns an empty Stack.
func NewStack() *Stack { return new(Stack) }

// Cap returns the number of nodes the stack holds without growing.
func (s *Stack) Cap() int { return cap(s.val) }

func grow[T any](b []T, n int) []T {
	if cap(b) < n {
		return make([]T, n)
	}
	b = b[:n]
	clear(b)
	return b
}

func (s *Stack) reset(n int) {
	s.val = grow(s.val, n)
	s.dot = grow(s.dot, n)
	s.adj = grow(s.adj, n)
	s.adot = grow(s.adot, n)
	s.d = grow(s.d, n)
	s.dd = grow(s.dd, n)
	s.kid = grow(s.kid, n)
	s.loc = grow(s.loc, n)
	s.pend = grow(s.pend, n)[:0]
}

// derivative orders computed by the forward sweep
const (
	orderValue = iota
	orderGrad
	orderHess
)

// forward evaluates node values and, up to order, the local partials.
// vars maps variable leaves to their position in the caller's list.
func (s *Stack) forward(ops []expr.Operator, x []float64, vars []expr.Var, order int) error {
	s.reset(len(ops))
	for i, op := range ops {
		s.loc[i] = -1
		switch op.Type.Arity() {
		case 0:
			v, err := op.Leaf(x)
			if err != nil {
				return err
			}
			s.val[i] = v
			s.kid[i] = [2]int{-1, -1}
			if op.Type == expr.OpVar {
				if k, ok := slices.BinarySearch(vars, op.Var); ok {
					s.loc[i] = k
				}
			}
		case 1:
			if len(s.pend) < 1 {
				return fmt.Errorf("%w: %s at %d without operand", expr.ErrMalformed, op.Type, i)
			}
			u := s.pend[len(s.pend)-1]
			s.pend = s.pend[:len(s.pend)-1]
			s.kid[i] = [2]int{u, -1}
			y, err := op.Apply(s.val[u], 0)
			if err != nil {
				return err
			}
			s.val[i] = y
			if order > orderValue {
				if err := s.unary(i, op, s.val[u], y, order); err != nil {
					return err
				}
			}
		default:
			if len(s.pend) < 2 {
				return fmt.Errorf("%w: %s at %d without operands", expr.ErrMalformed, op.Type, i)
			}
			u, v := s.pend[len(s.pend)-2], s.pend[len(s.pend)-1]
			s.pend = s.pend[:len(s.pend)-2]
			s.kid[i] = [2]int{u, v}
			y, err := op.Apply(s.val[u], s.val[v])
			if err != nil {
				return err
			}
			s.val[i] = y
			if order > orderValue {
				if err := s.binary(i, op, s.val[u], s.val[v], y, order); err != nil {
					return err
				}
			}
		}
		s.pend = append(s.pend, i)
	}
	if len(s.pend) != 1 {
		return fmt.Errorf("%w: sequence leaves %d values", expr.ErrMalformed, len(s.pend))
	}
	return nil
}

// reverse propagates first-order adjoints from the root and accumulates
// them into grad, indexed like the caller's variable list.
func (s *Stack) reverse(n int, grad []float64) {
	clear(s.adj[:n])
	s.adj[n-1] = 1
	for i := n - 1; i >= 0; i-- {
		a, k := s.adj[i], s.kid[i]
		switch {
		case k[0] < 0:
			if l := s.loc[i]; l >= 0 && grad != nil {
				grad[l] += a
			}
		case k[1] < 0:
			s.adj[k[0]] += a * s.d[i][0]
		default:
			s.adj[k[0]] += a * s.d[i][0]
			s.adj[k[1]] += a * s.d[i][1]
		}
	}
}

// column runs the tangent sweep seeded with variable dir followed by the
// second-order reverse sweep, leaving ∂²f/∂x∂x_dir in s.col.
// It expects adjoints from a previous reverse sweep.
func (s *Stack) column(n, dir int) {
	for i := range n {
		k := s.kid[i]
		switch {
		case k[0] < 0:
			s.dot[i] = 0
			if s.loc[i] == dir {
				s.dot[i] = 1
			}
		case k[1] < 0:
			s.dot[i] = s.d[i][0] * s.dot[k[0]]
		default:
			s.dot[i] = s.d[i][0]*s.dot[k[0]] + s.d[i][1]*s.dot[k[1]]
		}
	}

	clear(s.adot[:n])
	clear(s.col)
	for i := n - 1; i >= 0; i-- {
		a, b, k := s.adj[i], s.adot[i], s.kid[i]
		d, dd := s.d[i], s.dd[i]
		switch {
		case k[0] < 0:
			if l := s.loc[i]; l >= 0 {
				s.col[l] += b
			}
		case k[1] < 0:
			u := k[0]
			s.adot[u] += b*d[0] + a*dd[0]*s.dot[u]
		default:
			u, v := k[0], k[1]
			s.adot[u] += b*d[0] + a*(dd[0]*s.dot[u]+dd[1]*s.dot[v])
			s.adot[v] += b*d[1] + a*(dd[1]*s.dot[u]+dd[2]*s.dot[v])
		}
	}
}
