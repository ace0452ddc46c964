// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"cmp"
	"fmt"
	"slices"
)

// Pair is an unordered pair of variables stored in the lower triangle (Row >= Col).
type Pair struct {
	Row, Col Var
}

// NewPair returns the lower triangle pair of a and b.
func NewPair(a, b Var) Pair {
	if a < b {
		a, b = b, a
	}
	return Pair{Row: a, Col: b}
}

func (p Pair) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

// ComparePairs orders pairs by row, then column.
func ComparePairs(a, b Pair) int {
	if c := cmp.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	return cmp.Compare(a.Col, b.Col)
}

// Variables returns the distinct variables referenced by e in ascending order.
func (e Expr) Variables() []Var {
	seen := make(map[Var]struct{})
	var vars []Var
	for _, op := range e.operators() {
		if op.Type != OpVar {
			continue
		}
		if _, ok := seen[op.Var]; !ok {
			seen[op.Var] = struct{}{}
			vars = append(vars, op.Var)
		}
	}
	slices.Sort(vars)
	return vars
}

// HessianPattern returns the structurally nonzero second derivatives of e,
// ordered by ComparePairs.
//
// A pair is reported when some operator couples the two variables
// non-linearly: a product couples the variables of its two operands, a
// quotient additionally couples the denominator with itself, and a curved
// unary function couples its operand with itself. Sums only propagate.
func (e Expr) HessianPattern() []Pair {
	ops := e.operators()
	sets := make([][]Var, 0, len(ops))
	found := make(map[Pair]struct{})
	couple := func(a, b []Var) {
		for _, u := range a {
			for _, v := range b {
				found[NewPair(u, v)] = struct{}{}
			}
		}
	}
	for _, op := range ops {
		switch op.Type.Arity() {
		case 0:
			if op.Type == OpVar {
				sets = append(sets, []Var{op.Var})
			} else {
				sets = append(sets, nil)
			}
		case 1:
			if len(sets) == 0 {
				return nil
			}
			if u := sets[len(sets)-1]; !op.linear() {
				couple(u, u)
			}
		default:
			if len(sets) < 2 {
				return nil
			}
			u, v := sets[len(sets)-2], sets[len(sets)-1]
			switch op.Type {
			case OpMul:
				couple(u, v)
			case OpDiv:
				couple(u, v)
				couple(v, v)
			}
			sets = append(sets[:len(sets)-2], union(u, v))
		}
	}
	pairs := make([]Pair, 0, len(found))
	for p := range found {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, ComparePairs)
	return pairs
}

// union merges two ascending variable sets.
func union(a, b []Var) []Var {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}
	out := make([]Var, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i, j = i+1, j+1
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
