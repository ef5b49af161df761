package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/registry"
	"github.com/Tuee22/parapet/internal/runner"
	"github.com/Tuee22/parapet/internal/testutil"
)

func testRegistry(t *testing.T) (*registry.Registry, *runner.KVStore) {
	t.Helper()
	store, err := runner.NewKVStore(nil)
	require.NoError(t, err)
	kv := store.Runners(time.Second)

	reg, err := registry.New(
		kv[0], kv[1], kv[2],
		runner.NewClock(func() time.Time { return time.UnixMilli(42_000) }, time.Second),
	)
	require.NoError(t, err)
	return reg, store
}

func fixedDriver(reg *registry.Registry, opts ...Option) *Driver {
	opts = append([]Option{
		WithTokenGenerator(testutil.NewFixedTokenGenerator("run-1")),
		WithLogger(testutil.DiscardLogger()),
	}, opts...)
	return New(reg, opts...)
}

func TestDriver_CompletesWithFinalValue(t *testing.T) {
	reg, _ := testRegistry(t)
	d := fixedDriver(reg)

	prog := Func{
		ProgramName: "set-then-get",
		Body: func(ctx context.Context, y Yielder) (effect.Value, error) {
			out := y.Perform(effect.KVSet("k", effect.String("v"), 0))
			if err := out.Err(effect.KindKVSet); err != nil {
				return nil, err
			}
			out = y.Perform(effect.KVGet("k"))
			if err := out.Err(effect.KindKVGet); err != nil {
				return nil, err
			}
			return out.Value["value"], nil
		},
	}

	value, err := d.Run(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, effect.String("v"), value)
	assert.Equal(t, StatusCompleted, d.Status())
	assert.Equal(t, "run-1", d.RunID())
}

func TestDriver_EffectsDispatchedInYieldOrder(t *testing.T) {
	reg, _ := testRegistry(t)
	d := fixedDriver(reg)

	prog := Func{
		ProgramName: "ordered",
		Body: func(ctx context.Context, y Yielder) (effect.Value, error) {
			y.Perform(effect.KVSet("a", effect.Int(1), 0))
			y.Perform(effect.KVGet("a"))
			y.Perform(effect.TimeNow())
			return effect.Bool(true), nil
		},
	}

	_, err := d.Run(context.Background(), prog)
	require.NoError(t, err)

	trace := d.Trace()
	require.Len(t, trace, 3)
	assert.Equal(t, effect.KindKVSet, trace[0].Effect.Kind)
	assert.Equal(t, effect.KindKVGet, trace[1].Effect.Kind)
	assert.Equal(t, effect.KindTimeNow, trace[2].Effect.Kind)
	for i, st := range trace {
		assert.Equal(t, int64(i+1), st.Seq, "seq numbers are dense and ordered")
	}
}

func TestDriver_UnhandledTypedErrorFailsRun(t *testing.T) {
	reg, _ := testRegistry(t)
	d := fixedDriver(reg)

	prog := Func{
		ProgramName: "leaky",
		Body: func(ctx context.Context, y Yielder) (effect.Value, error) {
			// kv.set on an empty key yields the invalid variant; the
			// program does not handle it and lets it escape.
			out := y.Perform(effect.KVSet("", effect.Int(1), 0))
			if err := out.Err(effect.KindKVSet); err != nil {
				return nil, err
			}
			return effect.Bool(true), nil
		},
	}

	_, err := d.Run(context.Background(), prog)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, d.Status())

	var verr *effect.VariantError
	require.ErrorAs(t, err, &verr, "the original typed error is preserved")
	assert.Equal(t, effect.KindKVSet, verr.Kind)
	assert.Equal(t, effect.CaseInvalid, verr.Case)
}

func TestDriver_DataVariantIsNotFailure(t *testing.T) {
	reg, _ := testRegistry(t)
	d := fixedDriver(reg)

	prog := Func{
		ProgramName: "read-missing",
		Body: func(ctx context.Context, y Yielder) (effect.Value, error) {
			out := y.Perform(effect.KVGet("absent"))
			if err := out.Err(effect.KindKVGet); err != nil {
				return nil, err
			}
			return effect.String(out.Case), nil
		},
	}

	value, err := d.Run(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, effect.String(effect.CaseMissing), value)
	assert.Equal(t, StatusCompleted, d.Status())
}

func TestDriver_ProgramCanRetryAfterInspectingError(t *testing.T) {
	reg, _ := testRegistry(t)
	d := fixedDriver(reg)

	attempts := 0
	prog := Func{
		ProgramName: "retrying",
		Body: func(ctx context.Context, y Yielder) (effect.Value, error) {
			for {
				attempts++
				key := ""
				if attempts > 1 {
					key = "k"
				}
				out := y.Perform(effect.KVSet(key, effect.Int(1), 0))
				if out.OK() {
					return effect.Int(int64(attempts)), nil
				}
				if out.Case != effect.CaseInvalid || attempts >= 3 {
					return nil, out.Err(effect.KindKVSet)
				}
				// Retry policy lives in the program, never the runner.
			}
		},
	}

	value, err := d.Run(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, effect.Int(2), value)
}

func TestDriver_SingleUse(t *testing.T) {
	reg, _ := testRegistry(t)
	d := fixedDriver(reg)

	noop := Func{ProgramName: "noop", Body: func(context.Context, Yielder) (effect.Value, error) {
		return effect.Bool(true), nil
	}}
	_, err := d.Run(context.Background(), noop)
	require.NoError(t, err)

	_, err = d.Run(context.Background(), noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single-use")
}

func TestYielder_ConcurrentPerformPanics(t *testing.T) {
	reg, _ := testRegistry(t)
	d := fixedDriver(reg)

	y := &yielder{ctx: context.Background(), d: d}
	y.outstanding.Store(true) // simulate an in-flight dispatch

	assert.Panics(t, func() { y.Perform(effect.TimeNow()) },
		"a second Perform while one is outstanding breaks the cooperative contract")
}

func TestDriver_IndependentInstancesRunConcurrently(t *testing.T) {
	reg, _ := testRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			d := New(reg, WithLogger(testutil.DiscardLogger()))
			prog := Func{
				ProgramName: "worker",
				Body: func(ctx context.Context, y Yielder) (effect.Value, error) {
					out := y.Perform(effect.TimeNow())
					if err := out.Err(effect.KindTimeNow); err != nil {
						return nil, err
					}
					return out.Value["millis"], nil
				},
			}
			value, err := d.Run(context.Background(), prog)
			assert.NoError(t, err)
			assert.Equal(t, effect.Int(42_000), value)
		}(i)
	}
	wg.Wait()
}

func TestDriver_JournalReceivesEveryStep(t *testing.T) {
	reg, _ := testRegistry(t)
	journal := &memoryJournal{}
	d := fixedDriver(reg, WithJournal(journal))

	prog := Func{
		ProgramName: "journaled",
		Body: func(ctx context.Context, y Yielder) (effect.Value, error) {
			y.Perform(effect.KVSet("k", effect.Int(1), 0))
			y.Perform(effect.KVGet("k"))
			return effect.Bool(true), nil
		},
	}
	_, err := d.Run(context.Background(), prog)
	require.NoError(t, err)

	require.Len(t, journal.steps, 2)
	assert.Equal(t, "run-1", journal.runIDs[0])
	assert.Equal(t, effect.KindKVSet, journal.steps[0].Effect.Kind)
}

func TestDriver_JournalFailureDoesNotChangeSemantics(t *testing.T) {
	reg, _ := testRegistry(t)
	d := fixedDriver(reg, WithJournal(failingJournal{}))

	prog := Func{
		ProgramName: "journal-down",
		Body: func(ctx context.Context, y Yielder) (effect.Value, error) {
			out := y.Perform(effect.KVSet("k", effect.Int(1), 0))
			return effect.String(out.Case), nil
		},
	}
	value, err := d.Run(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, effect.String(effect.CaseOK), value)
}

type memoryJournal struct {
	mu     sync.Mutex
	runIDs []string
	steps  []Step
}

func (j *memoryJournal) Record(_ context.Context, runID string, step Step) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runIDs = append(j.runIDs, runID)
	j.steps = append(j.steps, step)
	return nil
}

type failingJournal struct{}

func (failingJournal) Record(context.Context, string, Step) error {
	return errors.New("disk full")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "suspended", StatusSuspended.String())
	assert.Equal(t, "completed", StatusCompleted.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
