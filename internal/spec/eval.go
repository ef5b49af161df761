package spec

import (
	"github.com/Tuee22/parapet/internal/effect"
)

// Env is the evaluation environment: the current state assignment plus
// the parameter binding of the action being evaluated. Params is nil
// outside an action context (invariants, liveness properties).
type Env struct {
	State  map[string]effect.Value
	Params map[string]effect.Value
}

// Eval evaluates an expression under env. Type mismatches and
// references to unbound names return an *EvalError; validation catches
// unbound references statically, so evaluation errors on a validated
// machine indicate operand type mismatches only.
func Eval(e Expr, env Env) (effect.Value, error) {
	switch x := e.(type) {
	case Lit:
		return x.Value, nil

	case VarRef:
		v, ok := env.State[x.Name]
		if !ok {
			return nil, &EvalError{Expr: FormatExpr(x), Message: "unbound state variable"}
		}
		return v, nil

	case ParamRef:
		v, ok := env.Params[x.Name]
		if !ok {
			return nil, &EvalError{Expr: FormatExpr(x), Message: "unbound parameter"}
		}
		return v, nil

	case Cmp:
		return evalCmp(x, env)

	case Arith:
		l, err := evalInt(x.Left, env)
		if err != nil {
			return nil, err
		}
		r, err := evalInt(x.Right, env)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case OpAdd:
			return effect.Int(l + r), nil
		case OpSub:
			return effect.Int(l - r), nil
		default:
			return nil, &EvalError{Expr: FormatExpr(x), Message: "unknown arithmetic operator"}
		}

	case And:
		for _, sub := range x.Exprs {
			b, err := EvalBool(sub, env)
			if err != nil {
				return nil, err
			}
			if !b {
				return effect.Bool(false), nil
			}
		}
		return effect.Bool(true), nil

	case Or:
		for _, sub := range x.Exprs {
			b, err := EvalBool(sub, env)
			if err != nil {
				return nil, err
			}
			if b {
				return effect.Bool(true), nil
			}
		}
		return effect.Bool(false), nil

	case Not:
		b, err := EvalBool(x.Expr, env)
		if err != nil {
			return nil, err
		}
		return effect.Bool(!b), nil

	default:
		return nil, &EvalError{Expr: FormatExpr(e), Message: "unknown expression node"}
	}
}

// EvalBool evaluates e and requires a boolean result.
func EvalBool(e Expr, env Env) (bool, error) {
	v, err := Eval(e, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(effect.Bool)
	if !ok {
		return false, &EvalError{Expr: FormatExpr(e), Message: "expected boolean result"}
	}
	return bool(b), nil
}

func evalCmp(x Cmp, env Env) (effect.Value, error) {
	l, err := Eval(x.Left, env)
	if err != nil {
		return nil, err
	}
	r, err := Eval(x.Right, env)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case OpEq:
		return effect.Bool(effect.Equal(l, r)), nil
	case OpNe:
		return effect.Bool(!effect.Equal(l, r)), nil
	}

	// Ordering is defined for integers only; enums are unordered sets.
	li, ok := l.(effect.Int)
	if !ok {
		return nil, &EvalError{Expr: FormatExpr(x), Message: "ordered comparison requires integer operands"}
	}
	ri, ok := r.(effect.Int)
	if !ok {
		return nil, &EvalError{Expr: FormatExpr(x), Message: "ordered comparison requires integer operands"}
	}

	switch x.Op {
	case OpLt:
		return effect.Bool(li < ri), nil
	case OpLe:
		return effect.Bool(li <= ri), nil
	case OpGt:
		return effect.Bool(li > ri), nil
	case OpGe:
		return effect.Bool(li >= ri), nil
	default:
		return nil, &EvalError{Expr: FormatExpr(x), Message: "unknown comparison operator"}
	}
}

func evalInt(e Expr, env Env) (effect.Int, error) {
	v, err := Eval(e, env)
	if err != nil {
		return 0, err
	}
	n, ok := v.(effect.Int)
	if !ok {
		return 0, &EvalError{Expr: FormatExpr(e), Message: "expected integer result"}
	}
	return n, nil
}
