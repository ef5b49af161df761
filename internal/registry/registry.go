// Package registry provides the single dispatch point from effect kinds
// to runners. A registry is assembled once at process start, validated
// at construction, and read-only thereafter. It is an explicit object
// handed to drivers, never a process-wide singleton, so test harnesses
// can each hold an isolated instance.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/runner"
)

// ConfigError reports a registry assembly defect: a duplicate
// registration or a required kind with no runner. These are fatal to
// process initialization; they never surface at dispatch time from a
// validated registry.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "registry: " + e.Message
}

// Registry is a closed mapping from effect kind to runner.
type Registry struct {
	runners map[effect.Kind]runner.Runner
}

// New assembles a registry from the given runners. Registering two
// runners for the same kind fails construction before any program runs.
func New(runners ...runner.Runner) (*Registry, error) {
	m := make(map[effect.Kind]runner.Runner, len(runners))
	for _, r := range runners {
		kind := r.Kind()
		if !kind.Valid() {
			return nil, &ConfigError{Message: fmt.Sprintf("runner registered for unknown kind %q", kind)}
		}
		if _, dup := m[kind]; dup {
			return nil, &ConfigError{Message: fmt.Sprintf("duplicate runner registration for kind %q", kind)}
		}
		m[kind] = r
	}
	return &Registry{runners: m}, nil
}

// NewComplete assembles a registry and additionally requires a runner
// for every kind in required. Missing coverage for a kind the program
// layer is known to emit is a startup error, not a dispatch surprise.
func NewComplete(required []effect.Kind, runners ...runner.Runner) (*Registry, error) {
	reg, err := New(runners...)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, k := range required {
		if _, ok := reg.runners[k]; !ok {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ConfigError{Message: "no runner registered for required kinds: " + strings.Join(missing, ", ")}
	}
	return reg, nil
}

// Dispatch routes an effect to its runner and returns the outcome
// unchanged. Routing is the only logic here: logging and metrics are
// themselves effects that flow through this same path.
func (r *Registry) Dispatch(ctx context.Context, eff effect.Effect) effect.Outcome {
	run, ok := r.runners[eff.Kind]
	if !ok {
		// Unreachable after NewComplete with a full required set; kept
		// total so an unvalidated registry still cannot panic.
		return effect.Failf(effect.CaseUnknown, "no runner registered for kind %q", eff.Kind)
	}
	return run.Run(ctx, eff)
}

// Kinds returns the registered kinds in contract order.
func (r *Registry) Kinds() []effect.Kind {
	var kinds []effect.Kind
	for _, k := range effect.AllKinds() {
		if _, ok := r.runners[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Len returns the number of registered runners.
func (r *Registry) Len() int {
	return len(r.runners)
}
