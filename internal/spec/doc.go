// Package spec defines the finite-state machine model that describes a
// runner's intended external behavior, and the CUE compiler that loads
// machines from .cue files.
//
// A Machine has state variables over finite domains, an initial
// assignment, guarded actions with modeled outcome sets, safety
// invariants, and liveness properties. Expressions are a sealed
// structural IR compiled from CUE; nothing is parsed from ad-hoc
// strings at runtime.
//
// Machines are the input to the model checker (internal/modelcheck)
// and, once checked, to the trace generator (internal/tracegen).
package spec
