// Package runner contains the boundary layer: the only code in the
// system permitted to perform real I/O. Each runner serves exactly one
// effect kind, owns its injected dependencies for its entire lifetime,
// and is wrapped by a shared guard that makes every crossing total:
// bounded by a timeout, panic-free, and classified into the kind's
// closed variant set.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/Tuee22/parapet/internal/effect"
)

// DefaultTimeout bounds a runner call when no explicit budget is given.
const DefaultTimeout = 5 * time.Second

// Runner executes effects of one kind. Implementations must be safe for
// concurrent Run calls: runner-owned dependencies are shared across
// program instances and neither the driver nor the registry locks
// around dispatch.
type Runner interface {
	// Kind is the single effect kind this runner accepts.
	Kind() effect.Kind
	// Run performs the effect and returns its outcome. Run never
	// panics, never blocks past the configured timeout, and only
	// returns cases declared for the kind.
	Run(ctx context.Context, eff effect.Effect) effect.Outcome
}

// body is the unguarded core of a runner: it sees the payload of an
// already kind-checked effect and produces an outcome.
type body func(ctx context.Context, payload effect.Object) effect.Outcome

// guarded wraps a body with the boundary contract. All concrete runners
// in this package are built through newGuarded so the timeout, panic
// recovery, and variant-closure rules are enforced in one place.
type guarded struct {
	kind    effect.Kind
	timeout time.Duration
	run     body
}

func newGuarded(kind effect.Kind, timeout time.Duration, run body) Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &guarded{kind: kind, timeout: timeout, run: run}
}

func (g *guarded) Kind() effect.Kind {
	return g.kind
}

// Run applies the boundary contract around the body:
//
//   - effects of the wrong kind are rejected without touching I/O
//   - the body runs under a deadline; on expiry the call is abandoned
//     (not cooperatively cancelled) and the timeout variant is returned
//   - panics are caught and reclassified as unknown with the panic
//     text preserved
//   - a body returning an undeclared case is reclassified as unknown,
//     keeping the stray case name in the diagnostic
func (g *guarded) Run(ctx context.Context, eff effect.Effect) effect.Outcome {
	if eff.Kind != g.kind {
		return effect.Failf(effect.CaseUnknown,
			"runner for %s dispatched a %s effect", g.kind, eff.Kind)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan effect.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- effect.Failf(effect.CaseUnknown, "panic at runner boundary: %v", r)
			}
		}()
		done <- g.run(ctx, eff.Payload)
	}()

	select {
	case out := <-done:
		if !effect.KnownCase(g.kind, out.Case) {
			return effect.Failf(effect.CaseUnknown,
				"runner returned undeclared case %q: %s", out.Case, out.Diag)
		}
		return out
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return effect.Failf(effect.CaseTimeout,
				"runner exceeded %s budget", g.timeout)
		}
		return effect.Failf(effect.CaseTimeout, "dispatch cancelled: %v", ctx.Err())
	}
}
