// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package expr represents algebraic expressions as flat operator sequences.
//
// An Expr stores its operators in postfix order: the operands of an operator
// always precede it, so a front-to-back scan with a value stack (or a
// back-to-front recursive descent) visits a single well-formed expression.
// Every operator kind has a fixed arity, which is what makes the scan
// unambiguous without child pointers.
//
// Composition never builds a tree. Add, Mul, Sin, ... splice the operand
// sequences and append the combining operator, folding trivial constants
// (x+0, x*1, x*0, c1+c2, ...) on the way so that the sequence length follows
// the real algebraic complexity.
package expr

import "strconv"

// Var is a non-owning handle of a decision variable.
// It is the index of the variable in the iterate vector x.
type Var int

// OpType tags an Operator.
type OpType uint8

const (
	OpConst OpType = iota // constant, payload in Value
	OpVar                 // variable reference, payload in Var
	OpAdd                 // u + v
	OpSub                 // u - v
	OpMul                 // u * v
	OpDiv                 // u / v
	OpNeg                 // -u
	OpPow                 // u ^ Value
	OpSin                 // sin(u)
	OpCos                 // cos(u)
	OpTan                 // tan(u)
	OpExp                 // exp(u)
	OpLog                 // log(u)
	numOps
)

var opNames = [numOps]string{
	OpConst: "const",
	OpVar:   "var",
	OpAdd:   "+",
	OpSub:   "-",
	OpMul:   "*",
	OpDiv:   "/",
	OpNeg:   "neg",
	OpPow:   "pow",
	OpSin:   "sin",
	OpCos:   "cos",
	OpTan:   "tan",
	OpExp:   "exp",
	OpLog:   "log",
}

func (t OpType) String() string {
	if t < numOps {
		return opNames[t]
	}
	return "op(" + strconv.Itoa(int(t)) + ")"
}

// Arity returns the number of operands consumed by t.
func (t OpType) Arity() int {
	switch t {
	case OpConst, OpVar:
		return 0
	case OpAdd, OpSub, OpMul, OpDiv:
		return 2
	default:
		return 1
	}
}

// Valid reports whether t is a known operator kind.
func (t OpType) Valid() bool { return t < numOps }

// Operator is a single node of a flattened expression.
type Operator struct {
	Type OpType
	// Value is the constant of OpConst and the exponent of OpPow.
	Value float64
	// Var is the variable referenced by OpVar.
	Var Var
}

// linear reports whether a unary operator has no curvature.
func (op Operator) linear() bool {
	return op.Type == OpNeg || (op.Type == OpPow && op.Value == 1)
}

func (op Operator) token(name func(Var) string) string {
	switch op.Type {
	case OpConst:
		return formatFloat(op.Value)
	case OpVar:
		return name(op.Var)
	case OpPow:
		return "^" + formatFloat(op.Value)
	default:
		return op.Type.String()
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
