package spec

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/Tuee22/parapet/internal/effect"
)

// Load reads a machine specification from a CUE file, compiles it, and
// validates it. The machine's SourceHash is the domain-separated
// content hash of the file bytes, which is what trace files record for
// the determinism gate.
func Load(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m, err := Compile(v.LookupPath(cue.ParsePath("machine")))
	if err != nil {
		return nil, err
	}
	m.SourceHash = effect.HashBytes(effect.DomainSpec, data)

	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Compile parses a CUE value into a Machine.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the machine struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`machine: { name: "kv", ... }`)
//	m, err := Compile(v.LookupPath(cue.ParsePath("machine")))
//
// Compile performs no cross-reference checks; callers run Validate on
// the result (Load does both).
func Compile(v cue.Value) (*Machine, error) {
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "machine",
			Message: "top-level machine struct is required",
		}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Machine{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "name",
			Message: "machine name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m.Name = name

	m.Vars, err = parseVarDecls(v.LookupPath(cue.ParsePath("vars")), "vars")
	if err != nil {
		return nil, err
	}
	if len(m.Vars) == 0 {
		return nil, &CompileError{
			Field:   "vars",
			Message: "at least one state variable is required",
			Pos:     v.Pos(),
		}
	}

	m.Init, err = parseInit(v.LookupPath(cue.ParsePath("init")))
	if err != nil {
		return nil, err
	}

	m.Actions, err = parseActions(v.LookupPath(cue.ParsePath("actions")))
	if err != nil {
		return nil, err
	}
	if len(m.Actions) == 0 {
		return nil, &CompileError{
			Field:   "actions",
			Message: "at least one action is required",
			Pos:     v.Pos(),
		}
	}

	m.Invariants, err = parseProperties(v.LookupPath(cue.ParsePath("invariants")), "invariants")
	if err != nil {
		return nil, err
	}
	m.Liveness, err = parseProperties(v.LookupPath(cue.ParsePath("liveness")), "liveness")
	if err != nil {
		return nil, err
	}

	return m, nil
}

// parseVarDecls parses a struct of name → domain declarations. Shared
// between machine vars and action params.
func parseVarDecls(v cue.Value, field string) ([]VarDecl, error) {
	var decls []VarDecl
	if !v.Exists() {
		return decls, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		dom, err := parseDomain(iter.Value(), fmt.Sprintf("%s.%s", field, name))
		if err != nil {
			return nil, err
		}
		decls = append(decls, VarDecl{Name: name, Domain: dom})
	}
	return decls, nil
}

// parseDomain decodes a domain declaration:
//
//	{type: "bool"}            boolean domain
//	{min: 0, max: 3}          inclusive integer range
//	{enum: ["idle", "busy"]}  closed string set
func parseDomain(v cue.Value, field string) (Domain, error) {
	if typVal := v.LookupPath(cue.ParsePath("type")); typVal.Exists() {
		typ, err := typVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if typ != "bool" {
			return nil, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("unsupported domain type %q (only \"bool\")", typ),
				Pos:     v.Pos(),
			}
		}
		return BoolDomain{}, nil
	}

	if enumVal := v.LookupPath(cue.ParsePath("enum")); enumVal.Exists() {
		iter, err := enumVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var members []string
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			members = append(members, s)
		}
		if len(members) == 0 {
			return nil, &CompileError{
				Field:   field,
				Message: "enum domain must have at least one member",
				Pos:     v.Pos(),
			}
		}
		return Enum{Members: members}, nil
	}

	minVal := v.LookupPath(cue.ParsePath("min"))
	maxVal := v.LookupPath(cue.ParsePath("max"))
	if minVal.Exists() && maxVal.Exists() {
		min, err := minVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		max, err := maxVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if max < min {
			return nil, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("empty integer range [%d..%d]", min, max),
				Pos:     v.Pos(),
			}
		}
		return IntRange{Min: min, Max: max}, nil
	}

	return nil, &CompileError{
		Field:   field,
		Message: "domain must be {type: \"bool\"}, {min, max}, or {enum: [...]}",
		Pos:     v.Pos(),
	}
}

func parseInit(v cue.Value) (map[string]effect.Value, error) {
	init := make(map[string]effect.Value)
	if !v.Exists() {
		return init, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		val, err := parseLiteral(iter.Value(), "init."+name)
		if err != nil {
			return nil, err
		}
		init[name] = val
	}
	return init, nil
}

func parseActions(v cue.Value) ([]Action, error) {
	var actions []Action
	if !v.Exists() {
		return actions, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		a, err := parseAction(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func parseAction(name string, v cue.Value) (Action, error) {
	a := Action{Name: name}
	field := "actions." + name

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return a, &CompileError{
			Field:   field + ".kind",
			Message: "effect kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return a, formatCUEError(err)
	}
	a.Kind = effect.Kind(kind)

	a.Params, err = parseVarDecls(v.LookupPath(cue.ParsePath("params")), field+".params")
	if err != nil {
		return a, err
	}

	if guardVal := v.LookupPath(cue.ParsePath("guard")); guardVal.Exists() {
		a.Guard, err = parseExpr(guardVal, field+".guard")
		if err != nil {
			return a, err
		}
	}

	if updatesVal := v.LookupPath(cue.ParsePath("updates")); updatesVal.Exists() {
		updIter, err := updatesVal.Fields()
		if err != nil {
			return a, formatCUEError(err)
		}
		for updIter.Next() {
			varName := updIter.Label()
			expr, err := parseExpr(updIter.Value(), fmt.Sprintf("%s.updates.%s", field, varName))
			if err != nil {
				return a, err
			}
			a.Updates = append(a.Updates, Update{Var: varName, Expr: expr})
		}
	}

	if payloadVal := v.LookupPath(cue.ParsePath("payload")); payloadVal.Exists() {
		a.Payload = make(map[string]Expr)
		pIter, err := payloadVal.Fields()
		if err != nil {
			return a, formatCUEError(err)
		}
		for pIter.Next() {
			key := pIter.Label()
			expr, err := parseExpr(pIter.Value(), fmt.Sprintf("%s.payload.%s", field, key))
			if err != nil {
				return a, err
			}
			a.Payload[key] = expr
		}
	}

	outcomesVal := v.LookupPath(cue.ParsePath("outcomes"))
	if !outcomesVal.Exists() {
		return a, &CompileError{
			Field:   field + ".outcomes",
			Message: "modeled outcome set is required",
			Pos:     v.Pos(),
		}
	}
	outIter, err := outcomesVal.List()
	if err != nil {
		return a, formatCUEError(err)
	}
	for outIter.Next() {
		out, err := parseOutcome(outIter.Value(), field+".outcomes")
		if err != nil {
			return a, err
		}
		a.Outcomes = append(a.Outcomes, out)
	}

	return a, nil
}

func parseOutcome(v cue.Value, field string) (OutcomeSpec, error) {
	var out OutcomeSpec

	caseName, err := v.LookupPath(cue.ParsePath("case")).String()
	if err != nil {
		return out, formatCUEError(err)
	}
	out.Case = caseName

	if valueVal := v.LookupPath(cue.ParsePath("value")); valueVal.Exists() {
		out.Value = make(map[string]Expr)
		iter, err := valueVal.Fields()
		if err != nil {
			return out, formatCUEError(err)
		}
		for iter.Next() {
			key := iter.Label()
			expr, err := parseExpr(iter.Value(), fmt.Sprintf("%s.%s.value.%s", field, caseName, key))
			if err != nil {
				return out, err
			}
			out.Value[key] = expr
		}
	}

	return out, nil
}

func parseProperties(v cue.Value, field string) ([]Property, error) {
	var props []Property
	if !v.Exists() {
		return props, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		expr, err := parseExpr(iter.Value(), fmt.Sprintf("%s.%s", field, name))
		if err != nil {
			return nil, err
		}
		props = append(props, Property{Name: name, Expr: expr})
	}
	return props, nil
}

// parseExpr decodes the structural expression encoding:
//
//	plain scalar or list         Lit
//	{var: "count"}               VarRef
//	{param: "n"}                 ParamRef
//	{op: "eq", left: e, right: e}     Cmp (also ne, lt, le, gt, ge)
//	{op: "add", left: e, right: e}    Arith (also sub)
//	{op: "and", exprs: [e, ...]}      And (also or)
//	{op: "not", expr: e}              Not
//
// Object literals are not supported in expressions; struct values must
// use one of the node encodings above.
func parseExpr(v cue.Value, field string) (Expr, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if v.IncompleteKind() != cue.StructKind {
		lit, err := parseLiteral(v, field)
		if err != nil {
			return nil, err
		}
		return Lit{Value: lit}, nil
	}

	if varVal := v.LookupPath(cue.ParsePath("var")); varVal.Exists() {
		name, err := varVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return VarRef{Name: name}, nil
	}

	if paramVal := v.LookupPath(cue.ParsePath("param")); paramVal.Exists() {
		name, err := paramVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ParamRef{Name: name}, nil
	}

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return nil, &CompileError{
			Field:   field,
			Message: "expression struct must have var, param, or op",
			Pos:     v.Pos(),
		}
	}
	op, err := opVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	switch op {
	case "eq", "ne", "lt", "le", "gt", "ge":
		left, right, err := parseBinaryOperands(v, field)
		if err != nil {
			return nil, err
		}
		return Cmp{Op: CmpOp(op), Left: left, Right: right}, nil

	case "add", "sub":
		left, right, err := parseBinaryOperands(v, field)
		if err != nil {
			return nil, err
		}
		return Arith{Op: ArithOp(op), Left: left, Right: right}, nil

	case "and", "or":
		exprsVal := v.LookupPath(cue.ParsePath("exprs"))
		if !exprsVal.Exists() {
			return nil, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("%s requires exprs list", op),
				Pos:     v.Pos(),
			}
		}
		iter, err := exprsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var exprs []Expr
		for iter.Next() {
			e, err := parseExpr(iter.Value(), field)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		if op == "and" {
			return And{Exprs: exprs}, nil
		}
		return Or{Exprs: exprs}, nil

	case "not":
		exprVal := v.LookupPath(cue.ParsePath("expr"))
		if !exprVal.Exists() {
			return nil, &CompileError{
				Field:   field,
				Message: "not requires expr",
				Pos:     v.Pos(),
			}
		}
		e, err := parseExpr(exprVal, field)
		if err != nil {
			return nil, err
		}
		return Not{Expr: e}, nil

	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown operator %q", op),
			Pos:     v.Pos(),
		}
	}
}

func parseBinaryOperands(v cue.Value, field string) (Expr, Expr, error) {
	leftVal := v.LookupPath(cue.ParsePath("left"))
	rightVal := v.LookupPath(cue.ParsePath("right"))
	if !leftVal.Exists() || !rightVal.Exists() {
		return nil, nil, &CompileError{
			Field:   field,
			Message: "binary operator requires left and right",
			Pos:     v.Pos(),
		}
	}
	left, err := parseExpr(leftVal, field)
	if err != nil {
		return nil, nil, err
	}
	right, err := parseExpr(rightVal, field)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// parseLiteral decodes a CUE scalar or list into an effect value.
// Floats are forbidden: effect values carry no fractional numbers.
func parseLiteral(v cue.Value, field string) (effect.Value, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return effect.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return effect.Int(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return effect.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := effect.Array{}
		for iter.Next() {
			elem, err := parseLiteral(iter.Value(), field)
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "float literals are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported literal kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}
