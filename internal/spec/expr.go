package spec

import (
	"fmt"
	"strings"

	"github.com/Tuee22/parapet/internal/effect"
)

// Expr is a machine expression over state variables and action
// parameters.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and
// enables exhaustive type switches in the evaluator.
//
// Expr types:
//   - Lit: literal value
//   - VarRef: state variable reference
//   - ParamRef: action parameter reference
//   - Cmp: comparison (eq, ne, lt, le, gt, ge)
//   - Arith: integer arithmetic (add, sub)
//   - And, Or, Not: boolean connectives
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Lit is a literal value.
type Lit struct {
	Value effect.Value
}

func (Lit) exprNode() {}

// VarRef references a machine state variable by name.
type VarRef struct {
	Name string
}

func (VarRef) exprNode() {}

// ParamRef references a parameter of the enclosing action by name.
// Invalid outside action guards, updates, payloads, and outcome values.
type ParamRef struct {
	Name string
}

func (ParamRef) exprNode() {}

// CmpOp is a comparison operator.
type CmpOp string

const (
	OpEq CmpOp = "eq"
	OpNe CmpOp = "ne"
	OpLt CmpOp = "lt"
	OpLe CmpOp = "le"
	OpGt CmpOp = "gt"
	OpGe CmpOp = "ge"
)

// Cmp compares two expressions. Equality is defined for all value
// types; ordering only for integers.
type Cmp struct {
	Op          CmpOp
	Left, Right Expr
}

func (Cmp) exprNode() {}

// ArithOp is an integer arithmetic operator.
type ArithOp string

const (
	OpAdd ArithOp = "add"
	OpSub ArithOp = "sub"
)

// Arith combines two integer expressions. Domains are finite, so the
// result is still checked against the target variable's domain on
// update; overflow beyond the domain is a modeling error, not wraparound.
type Arith struct {
	Op          ArithOp
	Left, Right Expr
}

func (Arith) exprNode() {}

// And is the conjunction of its operands. Empty And is true.
type And struct {
	Exprs []Expr
}

func (And) exprNode() {}

// Or is the disjunction of its operands. Empty Or is false.
type Or struct {
	Exprs []Expr
}

func (Or) exprNode() {}

// Not negates a boolean expression.
type Not struct {
	Expr Expr
}

func (Not) exprNode() {}

// FormatExpr renders an expression for error messages and
// counterexample output. The rendering is stable but not parseable.
func FormatExpr(e Expr) string {
	switch x := e.(type) {
	case Lit:
		b, err := effect.MarshalValue(x.Value)
		if err != nil {
			return "<bad literal>"
		}
		return string(b)
	case VarRef:
		return x.Name
	case ParamRef:
		return "$" + x.Name
	case Cmp:
		return fmt.Sprintf("(%s %s %s)", FormatExpr(x.Left), x.Op, FormatExpr(x.Right))
	case Arith:
		return fmt.Sprintf("(%s %s %s)", FormatExpr(x.Left), x.Op, FormatExpr(x.Right))
	case And:
		return "(and " + formatExprs(x.Exprs) + ")"
	case Or:
		return "(or " + formatExprs(x.Exprs) + ")"
	case Not:
		return "(not " + FormatExpr(x.Expr) + ")"
	default:
		return fmt.Sprintf("<unknown expr %T>", e)
	}
}

func formatExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = FormatExpr(e)
	}
	return strings.Join(parts, " ")
}
