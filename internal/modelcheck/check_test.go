package modelcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/spec"
)

// kvMachine models a bounded kv.set counter: set is enabled while
// writes < 2, get observes hit or miss depending on stored.
// Reachable states: (stored=false, writes=0), (true, 1), (true, 2).
func kvMachine() *spec.Machine {
	return &spec.Machine{
		Name: "kv_store",
		Vars: []spec.VarDecl{
			{Name: "stored", Domain: spec.BoolDomain{}},
			{Name: "writes", Domain: spec.IntRange{Min: 0, Max: 2}},
		},
		Init: map[string]effect.Value{
			"stored": effect.Bool(false),
			"writes": effect.Int(0),
		},
		Actions: []spec.Action{
			{
				Name:   "set",
				Kind:   effect.KindKVSet,
				Params: []spec.VarDecl{{Name: "n", Domain: spec.IntRange{Min: 1, Max: 2}}},
				Guard: spec.Cmp{
					Op:   spec.OpLt,
					Left: spec.VarRef{Name: "writes"}, Right: spec.Lit{Value: effect.Int(2)},
				},
				Updates: []spec.Update{
					{Var: "stored", Expr: spec.Lit{Value: effect.Bool(true)}},
					{Var: "writes", Expr: spec.Arith{
						Op:   spec.OpAdd,
						Left: spec.VarRef{Name: "writes"}, Right: spec.Lit{Value: effect.Int(1)},
					}},
				},
				Payload: map[string]spec.Expr{
					"key":   spec.Lit{Value: effect.String("counter")},
					"value": spec.ParamRef{Name: "n"},
				},
				Outcomes: []spec.OutcomeSpec{{Case: "ok"}, {Case: "timeout"}},
			},
			{
				Name:     "get_hit",
				Kind:     effect.KindKVGet,
				Guard:    spec.VarRef{Name: "stored"},
				Payload:  map[string]spec.Expr{"key": spec.Lit{Value: effect.String("counter")}},
				Outcomes: []spec.OutcomeSpec{{Case: "ok"}},
			},
			{
				Name:     "get_miss",
				Kind:     effect.KindKVGet,
				Guard:    spec.Not{Expr: spec.VarRef{Name: "stored"}},
				Payload:  map[string]spec.Expr{"key": spec.Lit{Value: effect.String("counter")}},
				Outcomes: []spec.OutcomeSpec{{Case: "missing"}},
			},
		},
		Invariants: []spec.Property{
			{Name: "writes_bounded", Expr: spec.Cmp{
				Op:   spec.OpLe,
				Left: spec.VarRef{Name: "writes"}, Right: spec.Lit{Value: effect.Int(2)},
			}},
		},
		Liveness: []spec.Property{
			{Name: "eventually_stored", Expr: spec.VarRef{Name: "stored"}},
		},
	}
}

func TestCheck_Passes(t *testing.T) {
	res, err := Check(kvMachine(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.States)
	// (false,0): set n=1, set n=2, get_miss; (true,1): set n=1, set n=2,
	// get_hit; (true,2): get_hit.
	assert.Equal(t, 7, res.Transitions)
	assert.Equal(t, 2, res.Depth)
}

func TestCheck_InvariantViolation(t *testing.T) {
	m := kvMachine()
	// Tighten the invariant below what set can reach.
	m.Invariants[0] = spec.Property{Name: "at_most_one_write", Expr: spec.Cmp{
		Op:   spec.OpLe,
		Left: spec.VarRef{Name: "writes"}, Right: spec.Lit{Value: effect.Int(1)},
	}}

	_, err := Check(m, Options{})
	require.Error(t, err)

	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "kv_store", invErr.Machine)
	assert.Equal(t, "at_most_one_write", invErr.Invariant)
	assert.True(t, effect.Equal(effect.Int(2), invErr.State["writes"]))

	// BFS finds a shortest path: two set steps.
	require.Len(t, invErr.Path, 2)
	assert.Equal(t, "set", invErr.Path[0].Action)
	assert.Equal(t, "set", invErr.Path[1].Action)
	assert.Contains(t, err.Error(), "counterexample:")
}

func TestCheck_InvariantViolationInInitialState(t *testing.T) {
	m := kvMachine()
	m.Invariants = append(m.Invariants, spec.Property{
		Name: "always_stored", Expr: spec.VarRef{Name: "stored"},
	})

	_, err := Check(m, Options{})
	require.Error(t, err)

	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "always_stored", invErr.Invariant)
	assert.Empty(t, invErr.Path, "initial state needs no counterexample path")
}

func TestCheck_LivenessFailure(t *testing.T) {
	m := kvMachine()
	m.Liveness = append(m.Liveness, spec.Property{
		Name: "two_writes", Expr: spec.Cmp{
			Op:   spec.OpEq,
			Left: spec.VarRef{Name: "writes"}, Right: spec.Lit{Value: effect.Int(2)},
		},
	})
	// Reachable, passes. Now one that is not:
	m.Liveness = append(m.Liveness, spec.Property{
		Name: "stored_cleared_again", Expr: spec.And{Exprs: []spec.Expr{
			spec.Not{Expr: spec.VarRef{Name: "stored"}},
			spec.Cmp{Op: spec.OpGt, Left: spec.VarRef{Name: "writes"}, Right: spec.Lit{Value: effect.Int(0)}},
		}},
	})

	_, err := Check(m, Options{})
	require.Error(t, err)

	var liveErr *LivenessError
	require.ErrorAs(t, err, &liveErr)
	assert.Equal(t, "stored_cleared_again", liveErr.Property)
	assert.Equal(t, 3, liveErr.States)
}

func TestCheck_StateBound(t *testing.T) {
	_, err := Check(kvMachine(), Options{MaxStates: 2})
	require.Error(t, err)

	var boundErr *BoundError
	require.ErrorAs(t, err, &boundErr)
	assert.Equal(t, "states", boundErr.Bound)
	assert.Equal(t, 2, boundErr.Limit)
}

func TestCheck_DepthBound(t *testing.T) {
	_, err := Check(kvMachine(), Options{MaxDepth: 1})
	require.Error(t, err)

	var boundErr *BoundError
	require.ErrorAs(t, err, &boundErr)
	assert.Equal(t, "depth", boundErr.Bound)
}

func TestCheck_DomainEscape(t *testing.T) {
	m := kvMachine()
	// Drop the guard: a third set drives writes to 3, outside [0..2].
	set := m.Actions[0]
	set.Guard = nil
	m.Actions[0] = set

	_, err := Check(m, Options{})
	require.Error(t, err)

	var escErr *DomainEscapeError
	require.ErrorAs(t, err, &escErr)
	assert.Equal(t, "set", escErr.Action)
	assert.Equal(t, "writes", escErr.Var)
	assert.True(t, effect.Equal(effect.Int(3), escErr.Value))
}

func TestEnabled_DeterministicOrder(t *testing.T) {
	m := kvMachine()
	init := map[string]effect.Value{
		"stored": effect.Bool(false),
		"writes": effect.Int(0),
	}

	bindings, err := Enabled(m, init)
	require.NoError(t, err)
	require.Len(t, bindings, 3)

	// Actions in declaration order; param values enumerated in domain order.
	assert.Equal(t, "set", bindings[0].Action.Name)
	assert.True(t, effect.Equal(effect.Int(1), bindings[0].Params["n"]))
	assert.Equal(t, "set", bindings[1].Action.Name)
	assert.True(t, effect.Equal(effect.Int(2), bindings[1].Params["n"]))
	assert.Equal(t, "get_miss", bindings[2].Action.Name)
	assert.Empty(t, bindings[2].Params)
}

func TestEnabled_TwoParamOdometer(t *testing.T) {
	m := &spec.Machine{
		Name: "pairs",
		Vars: []spec.VarDecl{{Name: "x", Domain: spec.BoolDomain{}}},
		Init: map[string]effect.Value{"x": effect.Bool(false)},
		Actions: []spec.Action{{
			Name: "probe",
			Kind: effect.KindTimeNow,
			Params: []spec.VarDecl{
				{Name: "a", Domain: spec.IntRange{Min: 0, Max: 1}},
				{Name: "b", Domain: spec.Enum{Members: []string{"p", "q"}}},
			},
			Outcomes: []spec.OutcomeSpec{{Case: "ok"}},
		}},
	}
	require.NoError(t, spec.Validate(m))

	bindings, err := Enabled(m, m.Init)
	require.NoError(t, err)
	require.Len(t, bindings, 4)

	want := []struct {
		a int64
		b string
	}{{0, "p"}, {0, "q"}, {1, "p"}, {1, "q"}}
	for i, w := range want {
		assert.True(t, effect.Equal(effect.Int(w.a), bindings[i].Params["a"]), "binding %d param a", i)
		assert.True(t, effect.Equal(effect.String(w.b), bindings[i].Params["b"]), "binding %d param b", i)
	}
}

func TestApply_UpdatesSeeEarlierUpdates(t *testing.T) {
	m := &spec.Machine{
		Name: "seq",
		Vars: []spec.VarDecl{
			{Name: "x", Domain: spec.IntRange{Min: 0, Max: 5}},
			{Name: "y", Domain: spec.IntRange{Min: 0, Max: 5}},
		},
		Init: map[string]effect.Value{"x": effect.Int(0), "y": effect.Int(0)},
		Actions: []spec.Action{{
			Name: "bump",
			Kind: effect.KindTimeNow,
			Updates: []spec.Update{
				{Var: "x", Expr: spec.Arith{Op: spec.OpAdd, Left: spec.VarRef{Name: "x"}, Right: spec.Lit{Value: effect.Int(1)}}},
				{Var: "y", Expr: spec.VarRef{Name: "x"}},
			},
			Outcomes: []spec.OutcomeSpec{{Case: "ok"}},
		}},
	}
	require.NoError(t, spec.Validate(m))

	next, err := Apply(m, m.Init, Binding{Action: m.Actions[0], Params: map[string]effect.Value{}})
	require.NoError(t, err)

	assert.True(t, effect.Equal(effect.Int(1), next["x"]))
	assert.True(t, effect.Equal(effect.Int(1), next["y"]), "y reads x after the first update")

	// The source state is untouched.
	assert.True(t, effect.Equal(effect.Int(0), m.Init["x"]))
}

func TestFingerprint_Canonical(t *testing.T) {
	a := State{"b": effect.Int(1), "a": effect.String("x")}
	b := State{"a": effect.String("x"), "b": effect.Int(1)}

	assert.Equal(t, Fingerprint(a), Fingerprint(b), "key order never leaks into fingerprints")
	assert.Equal(t, `{"a":"x","b":1}`, Fingerprint(a))
}
