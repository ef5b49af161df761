package modelcheck

import (
	"fmt"

	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/spec"
)

// State is one assignment of the machine's variables.
type State = map[string]effect.Value

// Binding is one enabled (action, parameter assignment) pair in some
// state.
type Binding struct {
	Action spec.Action
	Params map[string]effect.Value
}

// Fingerprint renders a state as its canonical JSON encoding. Equal
// states produce equal fingerprints, which is what the visited set and
// counterexample rendering rely on.
func Fingerprint(s State) string {
	obj := make(effect.Object, len(s))
	for k, v := range s {
		obj[k] = v
	}
	b, err := effect.MarshalValue(obj)
	if err != nil {
		// State values come from finite domains and update evaluation;
		// both only produce marshalable values.
		panic(fmt.Sprintf("modelcheck: unmarshalable state: %v", err))
	}
	return string(b)
}

// cloneState copies a state assignment. Values are immutable, so a
// shallow copy suffices.
func cloneState(s State) State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Enabled returns every (action, params) binding whose guard holds in
// state, in deterministic order: actions in declaration order, param
// assignments enumerated odometer-style with the last parameter varying
// fastest.
func Enabled(m *spec.Machine, state State) ([]Binding, error) {
	var enabled []Binding
	for _, a := range m.Actions {
		assignments, err := paramAssignments(a)
		if err != nil {
			return nil, err
		}
		for _, params := range assignments {
			if a.Guard != nil {
				ok, err := spec.EvalBool(a.Guard, spec.Env{State: state, Params: params})
				if err != nil {
					return nil, fmt.Errorf("action %s guard: %w", a.Name, err)
				}
				if !ok {
					continue
				}
			}
			enabled = append(enabled, Binding{Action: a, Params: params})
		}
	}
	return enabled, nil
}

// paramAssignments enumerates the cartesian product of an action's
// parameter domains. An action with no parameters has exactly one
// (empty) assignment.
func paramAssignments(a spec.Action) ([]map[string]effect.Value, error) {
	assignments := []map[string]effect.Value{{}}
	for _, p := range a.Params {
		values := p.Domain.Values()
		if len(values) == 0 {
			return nil, fmt.Errorf("action %s: parameter %s has empty domain", a.Name, p.Name)
		}
		next := make([]map[string]effect.Value, 0, len(assignments)*len(values))
		for _, base := range assignments {
			for _, v := range values {
				withP := make(map[string]effect.Value, len(base)+1)
				for k, bv := range base {
					withP[k] = bv
				}
				withP[p.Name] = v
				next = append(next, withP)
			}
		}
		assignments = next
	}
	return assignments, nil
}

// Apply computes the successor state of firing binding b in state.
// Updates are applied in declaration order; each update's expression
// sees the effects of earlier updates. The result of every update must
// stay inside the target variable's domain.
func Apply(m *spec.Machine, state State, b Binding) (State, error) {
	next := cloneState(state)
	for _, u := range b.Action.Updates {
		v, err := spec.Eval(u.Expr, spec.Env{State: next, Params: b.Params})
		if err != nil {
			return nil, fmt.Errorf("action %s update %s: %w", b.Action.Name, u.Var, err)
		}
		decl, ok := m.Var(u.Var)
		if !ok {
			return nil, fmt.Errorf("action %s update of undeclared variable %s", b.Action.Name, u.Var)
		}
		if !decl.Domain.Contains(v) {
			return nil, &DomainEscapeError{
				Machine: m.Name,
				Action:  b.Action.Name,
				Var:     u.Var,
				Domain:  decl.Domain.String(),
				Value:   v,
			}
		}
		next[u.Var] = v
	}
	return next, nil
}
