// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDomain is wrapped by every DomainError.
	ErrDomain = errors.New("expr: numeric domain error")
	// ErrMalformed reports an operator sequence that is not a single well-formed expression.
	ErrMalformed = errors.New("expr: malformed operator sequence")
)

// DomainError reports an operator evaluated outside of its domain.
// The evaluation point should be rejected by the caller.
type DomainError struct {
	Op     OpType
	Arg    float64
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("expr: %s(%g): %s", e.Op, e.Arg, e.Reason)
}

func (e *DomainError) Unwrap() error { return ErrDomain }

func domainError(t OpType, arg float64, reason string) error {
	return &DomainError{Op: t, Arg: arg, Reason: reason}
}

// Apply evaluates op on its operand values. Unary operators ignore v.
func (op Operator) Apply(u, v float64) (r float64, err error) {
	switch op.Type {
	case OpAdd:
		r = u + v
	case OpSub:
		r = u - v
	case OpMul:
		r = u * v
	case OpDiv:
		if v == 0 {
			return 0, domainError(op.Type, v, "division by zero")
		}
		r = u / v
	case OpNeg:
		r = -u
	case OpPow:
		p := op.Value
		switch {
		case u == 0 && p < 0:
			return 0, domainError(op.Type, u, "zero base with negative exponent")
		case u < 0 && p != math.Trunc(p):
			return 0, domainError(op.Type, u, "negative base with non-integer exponent")
		}
		r = math.Pow(u, p)
	case OpSin:
		r = math.Sin(u)
	case OpCos:
		r = math.Cos(u)
	case OpTan:
		r = math.Tan(u)
	case OpExp:
		r = math.Exp(u)
	case OpLog:
		if u <= 0 {
			return 0, domainError(op.Type, u, "logarithm of non-positive value")
		}
		r = math.Log(u)
	default:
		return 0, fmt.Errorf("%w: %s has no operands", ErrMalformed, op.Type)
	}
	if !finite(r) {
		return 0, domainError(op.Type, u, "non-finite result")
	}
	return r, nil
}

// Leaf returns the value of a constant or variable operator at x.
func (op Operator) Leaf(x []float64) (float64, error) {
	switch op.Type {
	case OpConst:
		return op.Value, nil
	case OpVar:
		if op.Var < 0 || int(op.Var) >= len(x) {
			return 0, fmt.Errorf("%w: variable %d outside point of size %d", ErrMalformed, op.Var, len(x))
		}
		if v := x[op.Var]; finite(v) {
			return v, nil
		}
		return 0, domainError(op.Type, x[op.Var], "non-finite variable value")
	default:
		return 0, fmt.Errorf("%w: %s is not a leaf", ErrMalformed, op.Type)
	}
}

// Eval returns the value of e at the point x, indexed by Var.
func (e Expr) Eval(x []float64) (float64, error) {
	ops := e.operators()
	cur := len(ops) - 1
	v, err := eval(ops, x, &cur)
	if err == nil && cur != -1 {
		err = fmt.Errorf("%w: %d operators left over", ErrMalformed, cur+1)
	}
	return v, err
}

// eval evaluates the sub-expression ending at *cur and moves the cursor
// before its first operator.
func eval(ops []Operator, x []float64, cur *int) (float64, error) {
	if *cur < 0 {
		return 0, fmt.Errorf("%w: missing operand", ErrMalformed)
	}
	op := ops[*cur]
	*cur--
	switch op.Type.Arity() {
	case 0:
		return op.Leaf(x)
	case 1:
		u, err := eval(ops, x, cur)
		if err != nil {
			return 0, err
		}
		return op.Apply(u, 0)
	default:
		v, err := eval(ops, x, cur)
		if err != nil {
			return 0, err
		}
		u, err := eval(ops, x, cur)
		if err != nil {
			return 0, err
		}
		return op.Apply(u, v)
	}
}

// Validate checks that the operator sequence describes exactly one expression.
func (e Expr) Validate() error {
	depth := 0
	for i, op := range e.operators() {
		if !op.Type.Valid() {
			return fmt.Errorf("%w: unknown operator %d at %d", ErrMalformed, op.Type, i)
		}
		n := op.Type.Arity()
		if depth < n {
			return fmt.Errorf("%w: %s at %d needs %d operands, has %d", ErrMalformed, op.Type, i, n, depth)
		}
		depth += 1 - n
	}
	if depth != 1 {
		return fmt.Errorf("%w: sequence leaves %d values", ErrMalformed, depth)
	}
	return nil
}
