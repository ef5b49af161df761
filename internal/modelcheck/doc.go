// Package modelcheck explores every reachable state of a spec.Machine,
// checking safety invariants on each state and liveness properties over
// the whole reachable set.
//
// Exploration is a bounded breadth-first search. Nondeterminism in
// modeled outcome sets does not branch the search: state updates are a
// deterministic function of (state, action, params), so the reachable
// graph is finite and exact. Any violation is reported with a
// counterexample path from the initial state; bound exhaustion is an
// explicit error, never a silent truncation.
package modelcheck
