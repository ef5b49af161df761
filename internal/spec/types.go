package spec

import (
	"fmt"
	"strings"

	"github.com/Tuee22/parapet/internal/effect"
)

// Machine is a finite-state specification of a runner's external
// behavior: finite-domain state variables, an initial assignment,
// guarded actions, safety invariants, and liveness properties.
//
// Machines are immutable after compilation. The model checker and the
// trace generator share one Machine value across goroutines without
// locking.
type Machine struct {
	Name       string
	Vars       []VarDecl
	Init       map[string]effect.Value
	Actions    []Action
	Invariants []Property
	Liveness   []Property

	// SourceHash is the content hash of the CUE source this machine was
	// loaded from. Empty for machines constructed in memory.
	SourceHash string
}

// Var returns the declaration of the named state variable, or false
// when no such variable is declared.
func (m *Machine) Var(name string) (VarDecl, bool) {
	for _, v := range m.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return VarDecl{}, false
}

// Action returns the named action, or false when no such action exists.
func (m *Machine) Action(name string) (Action, bool) {
	for _, a := range m.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// VarDecl declares one finite-domain variable. Used both for machine
// state variables and for action parameters.
type VarDecl struct {
	Name   string
	Domain Domain
}

// Domain is the finite value domain of a variable.
//
// This is a sealed interface - only types in this package implement it.
// Finiteness is what makes exhaustive model checking possible: every
// domain can enumerate its members.
type Domain interface {
	domainNode() // Marker method - seals interface to this package

	// Values enumerates every member of the domain in a fixed,
	// deterministic order.
	Values() []effect.Value

	// Contains reports whether v is a member of the domain.
	Contains(v effect.Value) bool

	// String renders the domain for error messages.
	String() string
}

// IntRange is the inclusive integer domain [Min, Max].
type IntRange struct {
	Min, Max int64
}

func (IntRange) domainNode() {}

func (d IntRange) Values() []effect.Value {
	vals := make([]effect.Value, 0, d.Max-d.Min+1)
	for i := d.Min; i <= d.Max; i++ {
		vals = append(vals, effect.Int(i))
	}
	return vals
}

func (d IntRange) Contains(v effect.Value) bool {
	n, ok := v.(effect.Int)
	return ok && int64(n) >= d.Min && int64(n) <= d.Max
}

func (d IntRange) String() string {
	return fmt.Sprintf("int[%d..%d]", d.Min, d.Max)
}

// Enum is a closed set of string members, enumerated in declaration
// order.
type Enum struct {
	Members []string
}

func (Enum) domainNode() {}

func (d Enum) Values() []effect.Value {
	vals := make([]effect.Value, len(d.Members))
	for i, m := range d.Members {
		vals[i] = effect.String(m)
	}
	return vals
}

func (d Enum) Contains(v effect.Value) bool {
	s, ok := v.(effect.String)
	if !ok {
		return false
	}
	for _, m := range d.Members {
		if m == string(s) {
			return true
		}
	}
	return false
}

func (d Enum) String() string {
	return "enum{" + strings.Join(d.Members, ",") + "}"
}

// BoolDomain is the two-member boolean domain, enumerated false first.
type BoolDomain struct{}

func (BoolDomain) domainNode() {}

func (BoolDomain) Values() []effect.Value {
	return []effect.Value{effect.Bool(false), effect.Bool(true)}
}

func (BoolDomain) Contains(v effect.Value) bool {
	_, ok := v.(effect.Bool)
	return ok
}

func (BoolDomain) String() string { return "bool" }

// Action is one modeled operation: when its guard holds, performing the
// effect it describes moves the machine through its updates and yields
// one of the modeled outcomes.
//
// Nondeterminism lives only in Outcomes: state updates are a
// deterministic function of (state, params), while the outcome of the
// real runner may be any member of the modeled set.
type Action struct {
	Name string

	// Kind is the effect kind this action exercises. Outcome cases are
	// validated against the kind's closed variant table.
	Kind effect.Kind

	// Params are finite-domain action parameters, enumerated in
	// declaration order by the checker and the generator.
	Params []VarDecl

	// Guard gates the action. A nil guard means always enabled.
	Guard Expr

	// Updates are applied in declaration order after the action fires.
	// Variables without an update keep their value.
	Updates []Update

	// Payload maps effect payload fields to expressions over state and
	// params; evaluated when the trace generator materializes the
	// concrete effect for this action.
	Payload map[string]Expr

	// Outcomes is the modeled outcome set, never empty. Order is
	// meaningful only for deterministic rendering; acceptance is
	// set-membership.
	Outcomes []OutcomeSpec
}

// Update assigns the value of Expr to the named state variable.
type Update struct {
	Var  string
	Expr Expr
}

// OutcomeSpec is one modeled outcome: its variant case and, optionally,
// expressions for the fields of the outcome value.
type OutcomeSpec struct {
	Case  string
	Value map[string]Expr
}

// Property is a named boolean expression over state variables. Safety
// invariants must hold in every reachable state; liveness properties
// must hold in at least one.
type Property struct {
	Name string
	Expr Expr
}
