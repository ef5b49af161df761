package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tuee22/parapet/internal/effect"
)

func TestGuard_RejectsWrongKind(t *testing.T) {
	r := newGuarded(effect.KindTimeNow, time.Second, func(context.Context, effect.Object) effect.Outcome {
		t.Fatal("body must not run for a wrong-kind effect")
		return effect.Ok(nil)
	})

	out := r.Run(context.Background(), effect.KVGet("k"))
	assert.Equal(t, effect.CaseUnknown, out.Case)
	assert.Contains(t, out.Diag, "kv.get")
}

func TestGuard_RecoversPanicIntoUnknown(t *testing.T) {
	r := newGuarded(effect.KindTimeNow, time.Second, func(context.Context, effect.Object) effect.Outcome {
		panic("driver exploded")
	})

	out := r.Run(context.Background(), effect.TimeNow())
	assert.Equal(t, effect.CaseUnknown, out.Case)
	assert.Contains(t, out.Diag, "driver exploded", "panic text must be preserved")
}

func TestGuard_TimeoutVariantWithinBudget(t *testing.T) {
	r := newGuarded(effect.KindTimeNow, 50*time.Millisecond, func(ctx context.Context, _ effect.Object) effect.Outcome {
		time.Sleep(2 * time.Second)
		return effect.Ok(nil)
	})

	start := time.Now()
	out := r.Run(context.Background(), effect.TimeNow())
	elapsed := time.Since(start)

	assert.Equal(t, effect.CaseTimeout, out.Case)
	assert.Less(t, elapsed, 500*time.Millisecond,
		"timeout must fire near the budget, not the body duration")
}

func TestGuard_ReclassifiesUndeclaredCase(t *testing.T) {
	r := newGuarded(effect.KindTimeNow, time.Second, func(context.Context, effect.Object) effect.Outcome {
		return effect.Fail("made_up_case", "stray")
	})

	out := r.Run(context.Background(), effect.TimeNow())
	assert.Equal(t, effect.CaseUnknown, out.Case)
	assert.Contains(t, out.Diag, "made_up_case")
}

func TestGuard_DefaultTimeoutApplied(t *testing.T) {
	r := newGuarded(effect.KindTimeNow, 0, func(context.Context, effect.Object) effect.Outcome {
		return effect.Ok(nil)
	})
	out := r.Run(context.Background(), effect.TimeNow())
	assert.True(t, out.OK())
}

func TestGuard_OutcomeCaseAlwaysDeclared(t *testing.T) {
	// Whatever the body does, the guard only lets declared variants out.
	bodies := []body{
		func(context.Context, effect.Object) effect.Outcome { return effect.Ok(nil) },
		func(context.Context, effect.Object) effect.Outcome { return effect.Fail("zzz", "") },
		func(context.Context, effect.Object) effect.Outcome { panic("x") },
	}
	for _, b := range bodies {
		r := newGuarded(effect.KindTimeNow, time.Second, b)
		out := r.Run(context.Background(), effect.TimeNow())
		require.True(t, effect.KnownCase(effect.KindTimeNow, out.Case),
			"guard let undeclared case %q escape", out.Case)
	}
}
