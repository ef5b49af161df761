package modelcheck

import (
	"fmt"
	"strings"

	"github.com/Tuee22/parapet/internal/effect"
)

// Step is one edge of a counterexample path: the binding that fired and
// the state it produced.
type Step struct {
	Action string
	Params map[string]effect.Value
	State  State
}

func (s Step) String() string {
	if len(s.Params) == 0 {
		return fmt.Sprintf("%s -> %s", s.Action, Fingerprint(s.State))
	}
	params := make(effect.Object, len(s.Params))
	for k, v := range s.Params {
		params[k] = v
	}
	pb, err := effect.MarshalValue(params)
	if err != nil {
		pb = []byte("<bad params>")
	}
	return fmt.Sprintf("%s%s -> %s", s.Action, pb, Fingerprint(s.State))
}

// InvariantError is a safety violation: a reachable state falsifies an
// invariant. Path leads from the initial state to the violating state.
type InvariantError struct {
	Machine   string
	Invariant string
	Path      []Step
	State     State
}

func (e *InvariantError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "machine %q: invariant %q violated in state %s",
		e.Machine, e.Invariant, Fingerprint(e.State))
	if len(e.Path) > 0 {
		b.WriteString("\ncounterexample:")
		for i, s := range e.Path {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, s)
		}
	}
	return b.String()
}

// LivenessError reports a liveness property no reachable state
// satisfies. There is no counterexample path: the evidence is the
// entire (exhaustively explored) reachable set.
type LivenessError struct {
	Machine  string
	Property string
	States   int
}

func (e *LivenessError) Error() string {
	return fmt.Sprintf("machine %q: liveness property %q unsatisfied by all %d reachable states",
		e.Machine, e.Property, e.States)
}

// BoundError reports bound exhaustion before the reachable set was
// fully explored. Results from a truncated search are meaningless, so
// this is fatal rather than a partial success.
type BoundError struct {
	Machine string
	Bound   string // "states" or "depth"
	Limit   int
}

func (e *BoundError) Error() string {
	return fmt.Sprintf("machine %q: %s bound %d exhausted before exploration completed",
		e.Machine, e.Bound, e.Limit)
}

// DomainEscapeError reports an update whose result left the target
// variable's declared domain. The machine, not the checker, is wrong.
type DomainEscapeError struct {
	Machine string
	Action  string
	Var     string
	Domain  string
	Value   effect.Value
}

func (e *DomainEscapeError) Error() string {
	vb, err := effect.MarshalValue(e.Value)
	if err != nil {
		vb = []byte("<bad value>")
	}
	return fmt.Sprintf("machine %q: action %q drives %s to %s, outside %s",
		e.Machine, e.Action, e.Var, vb, e.Domain)
}
