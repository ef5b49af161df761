package modelcheck

import (
	"fmt"

	"github.com/Tuee22/parapet/internal/spec"
)

// Default exploration bounds. Finite-domain machines in practice stay
// far below these; exhausting them signals a modeling mistake (such as
// a counter domain much larger than intended) rather than a checker
// limitation.
const (
	DefaultMaxStates = 100_000
	DefaultMaxDepth  = 10_000
)

// Options bounds the exploration. Zero values take the defaults.
type Options struct {
	MaxStates int
	MaxDepth  int
}

func (o Options) withDefaults() Options {
	if o.MaxStates <= 0 {
		o.MaxStates = DefaultMaxStates
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// Result summarizes a completed exploration.
type Result struct {
	// States is the number of distinct reachable states, including the
	// initial state.
	States int
	// Transitions is the number of (state, binding) edges examined,
	// counting edges into already-visited states.
	Transitions int
	// Depth is the longest shortest-path distance from the initial
	// state to any reachable state.
	Depth int
}

// node is one entry of the BFS frontier; parent links reconstruct
// counterexample paths.
type node struct {
	state  State
	parent *node
	via    *Binding // binding that produced this node; nil at the root
	depth  int
}

// Check explores every reachable state of m, checking each invariant in
// every state and each liveness property against the full reachable
// set. The first violation aborts with a typed error; a nil error means
// the machine passed completely.
func Check(m *spec.Machine, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	root := &node{state: cloneState(m.Init)}
	if err := checkInvariants(m, root); err != nil {
		return nil, err
	}

	visited := map[string]*node{Fingerprint(root.state): root}
	queue := []*node{root}
	transitions := 0
	maxDepth := 0

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		enabled, err := Enabled(m, n.state)
		if err != nil {
			return nil, fmt.Errorf("machine %q: %w", m.Name, err)
		}

		for i := range enabled {
			b := enabled[i]
			next, err := Apply(m, n.state, b)
			if err != nil {
				return nil, err
			}
			transitions++

			fp := Fingerprint(next)
			if _, seen := visited[fp]; seen {
				continue
			}

			child := &node{state: next, parent: n, via: &b, depth: n.depth + 1}
			if child.depth > opts.MaxDepth {
				return nil, &BoundError{Machine: m.Name, Bound: "depth", Limit: opts.MaxDepth}
			}
			if len(visited) >= opts.MaxStates {
				return nil, &BoundError{Machine: m.Name, Bound: "states", Limit: opts.MaxStates}
			}

			visited[fp] = child
			if child.depth > maxDepth {
				maxDepth = child.depth
			}
			if err := checkInvariants(m, child); err != nil {
				return nil, err
			}
			queue = append(queue, child)
		}
	}

	// Liveness as reachability: exploration is exhaustive, so "some
	// reachable state satisfies P" is decidable by scanning the
	// visited set.
	for _, p := range m.Liveness {
		satisfied := false
		for _, n := range visited {
			ok, err := spec.EvalBool(p.Expr, spec.Env{State: n.state})
			if err != nil {
				return nil, fmt.Errorf("machine %q: liveness %s: %w", m.Name, p.Name, err)
			}
			if ok {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return nil, &LivenessError{Machine: m.Name, Property: p.Name, States: len(visited)}
		}
	}

	return &Result{States: len(visited), Transitions: transitions, Depth: maxDepth}, nil
}

func checkInvariants(m *spec.Machine, n *node) error {
	for _, inv := range m.Invariants {
		ok, err := spec.EvalBool(inv.Expr, spec.Env{State: n.state})
		if err != nil {
			return fmt.Errorf("machine %q: invariant %s: %w", m.Name, inv.Name, err)
		}
		if !ok {
			return &InvariantError{
				Machine:   m.Name,
				Invariant: inv.Name,
				Path:      pathTo(n),
				State:     n.state,
			}
		}
	}
	return nil
}

// pathTo reconstructs the action sequence from the initial state to n
// by following parent links.
func pathTo(n *node) []Step {
	var rev []Step
	for cur := n; cur.via != nil; cur = cur.parent {
		rev = append(rev, Step{
			Action: cur.via.Action.Name,
			Params: cur.via.Params,
			State:  cur.state,
		})
	}
	steps := make([]Step, len(rev))
	for i, s := range rev {
		steps[len(rev)-1-i] = s
	}
	return steps
}
