// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"strconv"
	"strings"
)

// binding strength used to decide where parentheses are needed
const (
	precSum = iota + 1
	precProd
	precNeg
	precPow
	precAtom
)

// VarName is the default variable naming used by String.
func VarName(v Var) string { return "x[" + strconv.Itoa(int(v)) + "]" }

// String renders e in infix form.
func (e Expr) String() string { return e.Format(VarName) }

// Format renders e in infix form, naming variables with name.
func (e Expr) Format(name func(Var) string) string {
	ops := e.operators()
	cur := len(ops) - 1
	s, _ := render(ops, name, &cur)
	return s
}

// OpsString lists the operator sequence in storage order.
func (e Expr) OpsString() string {
	ops := e.operators()
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.token(VarName)
	}
	return strings.Join(parts, " ")
}

// render returns the sub-expression ending at *cur and its precedence.
func render(ops []Operator, name func(Var) string, cur *int) (string, int) {
	if *cur < 0 {
		return "?", precAtom
	}
	op := ops[*cur]
	*cur--
	switch op.Type {
	case OpConst:
		if op.Value < 0 {
			return formatFloat(op.Value), precNeg
		}
		return formatFloat(op.Value), precAtom
	case OpVar:
		return name(op.Var), precAtom
	case OpNeg:
		u, p := render(ops, name, cur)
		return "-" + enclose(u, p <= precNeg), precNeg
	case OpPow:
		u, p := render(ops, name, cur)
		return enclose(u, p < precAtom) + "^" + formatFloat(op.Value), precPow
	case OpAdd, OpSub, OpMul, OpDiv:
		prec := precSum
		if op.Type == OpMul || op.Type == OpDiv {
			prec = precProd
		}
		vi := *cur
		v, pv := render(ops, name, cur)
		ui := *cur
		u, pu := render(ops, name, cur)
		rhs := pv < prec || (pv == prec && (op.Type == OpSub || op.Type == OpDiv)) || negConst(ops, vi)
		lhs := pu < prec || (prec == precProd && negConst(ops, ui))
		return enclose(u, lhs) + " " + op.Type.String() + " " + enclose(v, rhs), prec
	default:
		u, _ := render(ops, name, cur)
		return op.Type.String() + "(" + u + ")", precAtom
	}
}

func negConst(ops []Operator, i int) bool {
	return i >= 0 && ops[i].Type == OpConst && ops[i].Value < 0
}

func enclose(s string, paren bool) string {
	if paren {
		return "(" + s + ")"
	}
	return s
}
