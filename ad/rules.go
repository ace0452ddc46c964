// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ad

import (
	"math"

	"github.com/curioloop/nlexpr/expr"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// unary stores the partials of y = op(u) at node i.
func (s *Stack) unary(i int, op expr.Operator, u, y float64, order int) error {
	var d1, d2 float64
	switch op.Type {
	case expr.OpNeg:
		d1 = -1
	case expr.OpPow:
		p := op.Value
		d1 = p * math.Pow(u, p-1)
		d2 = p * (p - 1) * math.Pow(u, p-2)
	case expr.OpSin:
		d1, d2 = math.Cos(u), -y
	case expr.OpCos:
		d1, d2 = -math.Sin(u), -y
	case expr.OpTan:
		d1 = 1 + y*y
		d2 = 2 * y * d1
	case expr.OpExp:
		d1, d2 = y, y
	case expr.OpLog:
		d1 = 1 / u
		d2 = -d1 * d1
	}
	if !finite(d1) {
		return &expr.DomainError{Op: op.Type, Arg: u, Reason: "derivative not finite"}
	}
	if order == orderHess && !finite(d2) {
		return &expr.DomainError{Op: op.Type, Arg: u, Reason: "second derivative not finite"}
	}
	s.d[i] = [2]float64{d1, 0}
	s.dd[i] = [3]float64{d2, 0, 0}
	return nil
}

// binary stores the partials of y = u op v at node i.
func (s *Stack) binary(i int, op expr.Operator, u, v, y float64, order int) error {
	var d [2]float64
	var dd [3]float64
	switch op.Type {
	case expr.OpAdd:
		d = [2]float64{1, 1}
	case expr.OpSub:
		d = [2]float64{1, -1}
	case expr.OpMul:
		d = [2]float64{v, u}
		dd = [3]float64{0, 1, 0}
	case expr.OpDiv:
		r := 1 / v
		d = [2]float64{r, -y * r}
		dd = [3]float64{0, -r * r, 2 * y * r * r}
	}
	if !finite(d[0]) || !finite(d[1]) {
		return &expr.DomainError{Op: op.Type, Arg: v, Reason: "derivative not finite"}
	}
	if order == orderHess && (!finite(dd[1]) || !finite(dd[2])) {
		return &expr.DomainError{Op: op.Type, Arg: v, Reason: "second derivative not finite"}
	}
	s.d[i], s.dd[i] = d, dd
	return nil
}
