package spec

import (
	"fmt"

	"github.com/Tuee22/parapet/internal/effect"
)

// Validate checks the cross-reference and domain rules that compilation
// alone cannot: every name resolves, every initial value is in its
// domain, every modeled outcome case exists in the effect kind's closed
// variant table. A machine that passes Validate evaluates without
// unbound-name errors.
func Validate(m *Machine) error {
	if m.Name == "" {
		return &ValidateError{Machine: m.Name, Field: "name", Message: "machine name is required"}
	}

	vars := make(map[string]Domain, len(m.Vars))
	for _, v := range m.Vars {
		if _, dup := vars[v.Name]; dup {
			return &ValidateError{
				Machine: m.Name,
				Field:   "vars." + v.Name,
				Message: "duplicate state variable",
			}
		}
		vars[v.Name] = v.Domain
	}

	// Init must assign every variable, nothing else, inside its domain.
	for name, val := range m.Init {
		dom, ok := vars[name]
		if !ok {
			return &ValidateError{
				Machine: m.Name,
				Field:   "init." + name,
				Message: "assignment to undeclared variable",
			}
		}
		if !dom.Contains(val) {
			return &ValidateError{
				Machine: m.Name,
				Field:   "init." + name,
				Message: fmt.Sprintf("initial value outside domain %s", dom),
			}
		}
	}
	for _, v := range m.Vars {
		if _, ok := m.Init[v.Name]; !ok {
			return &ValidateError{
				Machine: m.Name,
				Field:   "init." + v.Name,
				Message: "missing initial value",
			}
		}
	}

	seenActions := make(map[string]bool, len(m.Actions))
	for _, a := range m.Actions {
		if seenActions[a.Name] {
			return &ValidateError{
				Machine: m.Name,
				Field:   "actions." + a.Name,
				Message: "duplicate action name",
			}
		}
		seenActions[a.Name] = true

		if err := m.validateAction(a, vars); err != nil {
			return err
		}
	}

	// Invariants and liveness properties range over state only;
	// parameters have no meaning outside an action.
	for _, p := range m.Invariants {
		if err := m.checkRefs(p.Expr, "invariants."+p.Name, vars, nil); err != nil {
			return err
		}
	}
	for _, p := range m.Liveness {
		if err := m.checkRefs(p.Expr, "liveness."+p.Name, vars, nil); err != nil {
			return err
		}
	}

	return nil
}

func (m *Machine) validateAction(a Action, vars map[string]Domain) error {
	field := "actions." + a.Name

	if !a.Kind.Valid() {
		return &ValidateError{
			Machine: m.Name,
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown effect kind %q", a.Kind),
		}
	}

	params := make(map[string]Domain, len(a.Params))
	for _, p := range a.Params {
		if _, dup := params[p.Name]; dup {
			return &ValidateError{
				Machine: m.Name,
				Field:   fmt.Sprintf("%s.params.%s", field, p.Name),
				Message: "duplicate parameter",
			}
		}
		if _, shadows := vars[p.Name]; shadows {
			return &ValidateError{
				Machine: m.Name,
				Field:   fmt.Sprintf("%s.params.%s", field, p.Name),
				Message: "parameter shadows state variable",
			}
		}
		params[p.Name] = p.Domain
	}

	if a.Guard != nil {
		if err := m.checkRefs(a.Guard, field+".guard", vars, params); err != nil {
			return err
		}
	}

	for _, u := range a.Updates {
		if _, ok := vars[u.Var]; !ok {
			return &ValidateError{
				Machine: m.Name,
				Field:   fmt.Sprintf("%s.updates.%s", field, u.Var),
				Message: "update of undeclared variable",
			}
		}
		if err := m.checkRefs(u.Expr, fmt.Sprintf("%s.updates.%s", field, u.Var), vars, params); err != nil {
			return err
		}
	}

	for key, e := range a.Payload {
		if err := m.checkRefs(e, fmt.Sprintf("%s.payload.%s", field, key), vars, params); err != nil {
			return err
		}
	}

	if len(a.Outcomes) == 0 {
		return &ValidateError{
			Machine: m.Name,
			Field:   field + ".outcomes",
			Message: "modeled outcome set must not be empty",
		}
	}
	seenCases := make(map[string]bool, len(a.Outcomes))
	for _, out := range a.Outcomes {
		if !effect.KnownCase(a.Kind, out.Case) {
			return &ValidateError{
				Machine: m.Name,
				Field:   field + ".outcomes",
				Message: fmt.Sprintf("case %q is not in the %s variant table", out.Case, a.Kind),
			}
		}
		if seenCases[out.Case] {
			return &ValidateError{
				Machine: m.Name,
				Field:   field + ".outcomes",
				Message: fmt.Sprintf("duplicate outcome case %q", out.Case),
			}
		}
		seenCases[out.Case] = true

		for key, e := range out.Value {
			ref := fmt.Sprintf("%s.outcomes.%s.value.%s", field, out.Case, key)
			if err := m.checkRefs(e, ref, vars, params); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkRefs walks an expression and rejects references to names absent
// from the given scopes. A nil params scope rejects all ParamRefs.
func (m *Machine) checkRefs(e Expr, field string, vars, params map[string]Domain) error {
	switch x := e.(type) {
	case Lit:
		return nil
	case VarRef:
		if _, ok := vars[x.Name]; !ok {
			return &ValidateError{
				Machine: m.Name,
				Field:   field,
				Message: fmt.Sprintf("reference to undeclared variable %q", x.Name),
			}
		}
		return nil
	case ParamRef:
		if _, ok := params[x.Name]; !ok {
			return &ValidateError{
				Machine: m.Name,
				Field:   field,
				Message: fmt.Sprintf("reference to undeclared parameter %q", x.Name),
			}
		}
		return nil
	case Cmp:
		if err := m.checkRefs(x.Left, field, vars, params); err != nil {
			return err
		}
		return m.checkRefs(x.Right, field, vars, params)
	case Arith:
		if err := m.checkRefs(x.Left, field, vars, params); err != nil {
			return err
		}
		return m.checkRefs(x.Right, field, vars, params)
	case And:
		for _, sub := range x.Exprs {
			if err := m.checkRefs(sub, field, vars, params); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for _, sub := range x.Exprs {
			if err := m.checkRefs(sub, field, vars, params); err != nil {
				return err
			}
		}
		return nil
	case Not:
		return m.checkRefs(x.Expr, field, vars, params)
	default:
		return &ValidateError{
			Machine: m.Name,
			Field:   field,
			Message: fmt.Sprintf("unknown expression node %T", e),
		}
	}
}
