// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"math"
	"slices"
)

// Expr is an algebraic expression stored as a postfix operator sequence.
//
// The zero Expr is the constant 0. Expr values may be copied freely: a copy
// shares storage with its source, only the Expr that owns the storage appends
// to it in place, and any other Expr clones the storage before growing it.
type Expr struct {
	// addr is the only Expr allowed to append to ops in place.
	addr *Expr
	// hw is the length written to the backing array of ops so far, shared by
	// every Expr viewing that array.
	hw  *int
	ops []Operator
}

var zeroOps = []Operator{{Type: OpConst}}

// Const returns the constant expression c.
func Const(c float64) Expr {
	return Expr{ops: []Operator{{Type: OpConst, Value: c}}}
}

// Int returns the constant expression c.
func Int(c int) Expr { return Const(float64(c)) }

// Variable returns the expression made of the single variable v.
func Variable(v Var) Expr {
	return Expr{ops: []Operator{{Type: OpVar, Var: v}}}
}

func (e Expr) operators() []Operator {
	if len(e.ops) == 0 {
		return zeroOps
	}
	return e.ops
}

func (e Expr) detach() Expr {
	e.addr = nil
	return e
}

// own prepares e to append extra operators in place. Storage is cloned
// unless e owns it, no view has seen operators past len(e.ops) and the
// spare capacity fits.
func (e *Expr) own(extra int) {
	if e.addr == e && e.hw != nil && *e.hw == len(e.ops) && cap(e.ops)-len(e.ops) >= extra {
		return
	}
	src := e.operators()
	ops := make([]Operator, len(src), max(2*len(src), len(src)+extra))
	copy(ops, src)
	e.ops, e.addr, e.hw = ops, e, new(int)
	*e.hw = len(ops)
}

// set shares the storage of v without taking ownership.
func (e *Expr) set(v Expr) {
	e.ops, e.addr, e.hw = v.ops, nil, v.hw
}

// adopt moves the storage of b into e.
func (e *Expr) adopt(b *Expr) {
	e.ops, e.addr, e.hw = b.ops, nil, b.hw
	if b.addr == b {
		e.addr = e
	}
}

func (e *Expr) push(t OpType, rhs []Operator) {
	e.own(len(rhs) + 1)
	e.ops = append(e.ops, rhs...)
	e.ops = append(e.ops, Operator{Type: t})
	*e.hw = len(e.ops)
}

func (e *Expr) apply(op Operator) {
	e.own(1)
	e.ops = append(e.ops, op)
	*e.hw = len(e.ops)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PlusEqual sets e to e + b. The operators of b are copied.
func (e *Expr) PlusEqual(b Expr) *Expr {
	switch {
	case b.IsZero():
	case e.IsZero():
		e.set(b)
	case e.IsConstant() && b.IsConstant() && finite(e.ConstantValue()+b.ConstantValue()):
		e.set(Const(e.ConstantValue() + b.ConstantValue()))
	default:
		e.push(OpAdd, b.operators())
	}
	return e
}

// PlusTake sets e to e + *b and leaves b as the zero Expr.
// When e folds away, the storage of b is reused instead of copied.
func (e *Expr) PlusTake(b *Expr) *Expr {
	if b == e {
		return e.PlusEqual(*b)
	}
	if e.IsZero() {
		e.adopt(b)
	} else {
		e.PlusEqual(*b)
	}
	*b = Expr{}
	return e
}

// PlusConst sets e to e + c.
func (e *Expr) PlusConst(c float64) *Expr { return e.PlusEqual(Const(c)) }

// MulEqual sets e to e * b. The operators of b are copied.
func (e *Expr) MulEqual(b Expr) *Expr {
	switch {
	case e.IsZero() || b.IsZero():
		e.set(Const(0))
	case b.IsOne():
	case e.IsOne():
		e.set(b)
	case e.IsConstant() && b.IsConstant() && finite(e.ConstantValue()*b.ConstantValue()):
		e.set(Const(e.ConstantValue() * b.ConstantValue()))
	default:
		e.push(OpMul, b.operators())
	}
	return e
}

// MulTake sets e to e * *b and leaves b as the zero Expr.
func (e *Expr) MulTake(b *Expr) *Expr {
	if b == e {
		return e.MulEqual(*b)
	}
	if e.IsOne() {
		e.adopt(b)
		if e.IsZero() {
			e.set(Const(0))
		}
	} else {
		e.MulEqual(*b)
	}
	*b = Expr{}
	return e
}

// MulByConst sets e to e * c.
func (e *Expr) MulByConst(c float64) *Expr { return e.MulEqual(Const(c)) }

// Add returns a + b.
func Add(a, b Expr) Expr { return a.PlusEqual(b).detach() }

// AddConst returns a + c.
func AddConst(a Expr, c float64) Expr { return Add(a, Const(c)) }

// Mul returns a * b.
func Mul(a, b Expr) Expr { return a.MulEqual(b).detach() }

// MulConst returns c * a.
func MulConst(c float64, a Expr) Expr { return Mul(Const(c), a) }

// Sum returns the sum of terms, left to right.
func Sum(terms ...Expr) Expr {
	var s Expr
	for _, t := range terms {
		s.PlusEqual(t)
	}
	return s.detach()
}

// Product returns the product of factors, left to right.
func Product(factors ...Expr) Expr {
	p := Const(1)
	for _, f := range factors {
		p.MulEqual(f)
	}
	return p.detach()
}

// Sub returns a - b.
func Sub(a, b Expr) Expr {
	switch {
	case b.IsZero():
		return a.detach()
	case a.IsZero():
		return Neg(b)
	case a.IsConstant() && b.IsConstant() && finite(a.ConstantValue()-b.ConstantValue()):
		return Const(a.ConstantValue() - b.ConstantValue())
	}
	a.push(OpSub, b.operators())
	return a.detach()
}

// SubConst returns a - c.
func SubConst(a Expr, c float64) Expr { return Sub(a, Const(c)) }

// Div returns a / b. A zero denominator is only reported at evaluation.
func Div(a, b Expr) Expr {
	switch {
	case b.IsOne():
		return a.detach()
	case a.IsConstant() && b.IsConstant() && b.ConstantValue() != 0 &&
		finite(a.ConstantValue()/b.ConstantValue()):
		return Const(a.ConstantValue() / b.ConstantValue())
	}
	a.push(OpDiv, b.operators())
	return a.detach()
}

// Neg returns -a.
func Neg(a Expr) Expr {
	switch {
	case a.IsConstant():
		return Const(-a.ConstantValue())
	case a.Type() == OpNeg:
		return Expr{ops: a.ops[:len(a.ops)-1]}
	}
	a.apply(Operator{Type: OpNeg})
	return a.detach()
}

// Pow returns a raised to the constant power p.
func Pow(a Expr, p float64) Expr {
	switch {
	case p == 0:
		return Const(1)
	case p == 1:
		return a.detach()
	case a.IsConstant():
		if v := math.Pow(a.ConstantValue(), p); finite(v) {
			return Const(v)
		}
	}
	a.apply(Operator{Type: OpPow, Value: p})
	return a.detach()
}

// Unary applies the unary function t to a. OpPow needs an exponent and is
// built with Pow instead.
func Unary(a Expr, t OpType) Expr {
	switch t {
	case OpNeg:
		return Neg(a)
	case OpSin, OpCos, OpTan, OpExp, OpLog:
	default:
		panic("expr: " + t.String() + " is not a unary function")
	}
	op := Operator{Type: t}
	if a.IsConstant() {
		if v, err := op.Apply(a.ConstantValue(), 0); err == nil {
			return Const(v)
		}
	}
	a.apply(op)
	return a.detach()
}

// Sin returns sin(a).
func Sin(a Expr) Expr { return Unary(a, OpSin) }

// Cos returns cos(a).
func Cos(a Expr) Expr { return Unary(a, OpCos) }

// Tan returns tan(a).
func Tan(a Expr) Expr { return Unary(a, OpTan) }

// Exp returns exp(a).
func Exp(a Expr) Expr { return Unary(a, OpExp) }

// Log returns the natural logarithm of a.
func Log(a Expr) Expr { return Unary(a, OpLog) }

// IsConstant reports whether e is a single constant node.
func (e Expr) IsConstant() bool {
	ops := e.operators()
	return len(ops) == 1 && ops[0].Type == OpConst
}

// IsZero reports whether e is the constant 0.
func (e Expr) IsZero() bool {
	return e.IsConstant() && e.operators()[0].Value == 0
}

// IsOne reports whether e is the constant 1.
func (e Expr) IsOne() bool {
	return e.IsConstant() && e.operators()[0].Value == 1
}

// ConstantValue returns the value of a constant expression.
// It panics if e is not constant.
func (e Expr) ConstantValue() float64 {
	if !e.IsConstant() {
		panic("expr: not a constant expression")
	}
	return e.operators()[0].Value
}

// Type returns the kind of the root operator.
func (e Expr) Type() OpType { return e.Back().Type }

// Front returns the first operator of the sequence.
func (e Expr) Front() Operator { return e.operators()[0] }

// Back returns the root operator, the last of the sequence.
func (e Expr) Back() Operator {
	ops := e.operators()
	return ops[len(ops)-1]
}

// Len returns the number of operators.
func (e Expr) Len() int { return len(e.operators()) }

// Sequence returns the operator sequence without copying it.
// The result must not be modified.
func (e Expr) Sequence() []Operator { return e.operators() }

// Ops returns a copy of the operator sequence.
func (e Expr) Ops() []Operator { return slices.Clone(e.operators()) }

// Clone returns a copy of e with its own storage.
func (e Expr) Clone() Expr { return Expr{ops: e.Ops()} }

// Equal reports whether e and o have the same operator sequence.
func (e Expr) Equal(o Expr) bool {
	return slices.Equal(e.operators(), o.operators())
}

// FromOps builds an expression from a postfix operator sequence.
// The sequence is validated but not folded.
func FromOps(ops []Operator) (Expr, error) {
	e := Expr{ops: slices.Clone(ops)}
	if err := e.Validate(); err != nil {
		return Expr{}, err
	}
	return e, nil
}
