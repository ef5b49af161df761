package tracegen

import (
	"fmt"

	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/modelcheck"
	"github.com/Tuee22/parapet/internal/spec"
)

// DefaultMaxSteps bounds the cover walk. Traces are meant to be
// representative, not exhaustive; a machine needing more steps than
// this to cover its bindings should be split.
const DefaultMaxSteps = 64

// Options configures generation. Zero values take the defaults.
type Options struct {
	MaxSteps int
	// Check bounds the model-checking pass that gates generation.
	Check modelcheck.Options
}

func (o Options) withDefaults() Options {
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	return o
}

// Generate model-checks m and, on success, walks the machine to
// produce a conformance trace covering its (action, params) bindings.
//
// The walk is deterministic: from each state it prefers, in order,
// an unfired binding that leaves the state unchanged (observations are
// free), an unfired binding that moves the state, and otherwise the
// least-fired binding; ties resolve in enumeration order. The walk
// stops once every binding seen enabled has fired, on deadlock, or at
// the step bound.
func Generate(m *spec.Machine, opts Options) (*Trace, error) {
	opts = opts.withDefaults()

	if _, err := modelcheck.Check(m, opts.Check); err != nil {
		return nil, fmt.Errorf("spec must pass model checking before generation: %w", err)
	}

	tr := &Trace{Machine: m.Name, SpecHash: m.SourceHash}

	state := make(modelcheck.State, len(m.Init))
	for k, v := range m.Init {
		state[k] = v
	}

	fired := map[string]int{}
	seen := map[string]bool{}

	for len(tr.Steps) < opts.MaxSteps {
		enabled, err := modelcheck.Enabled(m, state)
		if err != nil {
			return nil, err
		}
		if len(enabled) == 0 {
			break
		}

		covered := true
		for _, b := range enabled {
			seen[bindingKey(b)] = true
		}
		for key := range seen {
			if fired[key] == 0 {
				covered = false
				break
			}
		}
		if covered {
			break
		}

		choice, next, err := chooseBinding(m, state, enabled, fired)
		if err != nil {
			return nil, err
		}

		step, err := materializeStep(state, choice)
		if err != nil {
			return nil, err
		}
		tr.Steps = append(tr.Steps, step)

		fired[bindingKey(choice)]++
		state = next
	}

	return tr, nil
}

// chooseBinding picks the next binding to fire and returns it with its
// successor state.
func chooseBinding(m *spec.Machine, state modelcheck.State, enabled []modelcheck.Binding, fired map[string]int) (modelcheck.Binding, modelcheck.State, error) {
	stateFP := modelcheck.Fingerprint(state)

	bestIdx := -1
	var bestNext modelcheck.State
	bestRank := [2]int{}

	for i, b := range enabled {
		next, err := modelcheck.Apply(m, state, b)
		if err != nil {
			return modelcheck.Binding{}, nil, err
		}

		count := fired[bindingKey(b)]
		loop := 0
		if modelcheck.Fingerprint(next) != stateFP {
			loop = 1
		}
		// Rank: unfired before fired, self-loops before moves, then
		// fewest firings. Enumeration order breaks remaining ties via
		// strict less-than.
		rank := [2]int{count, loop}
		if count > 0 {
			rank = [2]int{count + 1, loop}
		}
		if bestIdx == -1 || rankLess(rank, bestRank) {
			bestIdx, bestNext, bestRank = i, next, rank
		}
	}

	return enabled[bestIdx], bestNext, nil
}

func rankLess(a, b [2]int) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

// materializeStep evaluates an action's payload and modeled outcomes
// under the pre-state to produce one concrete trace step.
func materializeStep(state modelcheck.State, b modelcheck.Binding) (Step, error) {
	env := spec.Env{State: state, Params: b.Params}

	payload := make(effect.Object, len(b.Action.Payload))
	for key, e := range b.Action.Payload {
		v, err := spec.Eval(e, env)
		if err != nil {
			return Step{}, fmt.Errorf("action %s payload %s: %w", b.Action.Name, key, err)
		}
		payload[key] = v
	}

	params := make(effect.Object, len(b.Params))
	for k, v := range b.Params {
		params[k] = v
	}

	var accept []Expectation
	for _, out := range b.Action.Outcomes {
		x := Expectation{Case: out.Case}
		if len(out.Value) > 0 {
			x.Value = make(effect.Object, len(out.Value))
			for key, e := range out.Value {
				v, err := spec.Eval(e, env)
				if err != nil {
					return Step{}, fmt.Errorf("action %s outcome %s value %s: %w", b.Action.Name, out.Case, key, err)
				}
				x.Value[key] = v
			}
		}
		accept = append(accept, x)
	}

	return Step{
		Action: b.Action.Name,
		Params: params,
		Effect: effect.Effect{Kind: b.Action.Kind, Payload: payload},
		Accept: accept,
	}, nil
}

func bindingKey(b modelcheck.Binding) string {
	params := make(effect.Object, len(b.Params))
	for k, v := range b.Params {
		params[k] = v
	}
	return b.Action.Name + "|" + modelcheck.Fingerprint(params)
}
