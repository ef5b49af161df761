package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tuee22/parapet/internal/driver"
	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/registry"
	"github.com/Tuee22/parapet/internal/runner"
	"github.com/Tuee22/parapet/internal/testutil"
)

func sampleStep(seq int64) driver.Step {
	return driver.Step{
		Seq:    seq,
		Effect: effect.KVSet("counter", effect.Int(seq), 0),
		Outcome: effect.Ok(effect.Object{
			"created": effect.Bool(seq == 1),
		}),
	}
}

func TestWriteDispatch_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteDispatch(ctx, "run-a", sampleStep(1)))
	require.NoError(t, s.WriteDispatch(ctx, "run-a", sampleStep(2)))

	steps, err := s.ReadRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	for i, got := range steps {
		want := sampleStep(int64(i + 1))
		assert.Equal(t, want.Seq, got.Seq)
		assert.True(t, got.Effect.Equal(want.Effect), "effect at seq %d", got.Seq)
		assert.True(t, got.Outcome.Equal(want.Outcome), "outcome at seq %d", got.Seq)
	}
}

func TestWriteDispatch_IdempotentOnRunSeq(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := sampleStep(1)
	require.NoError(t, s.WriteDispatch(ctx, "run-a", first))

	// A crashed driver retrying the same seq must not overwrite or
	// duplicate, even if the retried payload differs.
	conflicting := driver.Step{
		Seq:     1,
		Effect:  effect.KVDelete("counter"),
		Outcome: effect.Fail("invalid", "retry gone wrong"),
	}
	require.NoError(t, s.WriteDispatch(ctx, "run-a", conflicting))

	steps, err := s.ReadRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Effect.Equal(first.Effect))
	assert.True(t, steps[0].Outcome.Equal(first.Outcome))
}

func TestWriteDispatch_PreservesDiag(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	step := driver.Step{
		Seq:     1,
		Effect:  effect.KVGet("missing-key"),
		Outcome: effect.Fail("invalid", "empty key"),
	}
	require.NoError(t, s.WriteDispatch(ctx, "run-a", step))

	steps, err := s.ReadRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "invalid", steps[0].Outcome.Case)
	assert.Equal(t, "empty key", steps[0].Outcome.Diag)
}

func TestWriteDispatch_StoresEffectID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	step := sampleStep(1)
	require.NoError(t, s.WriteDispatch(ctx, "run-a", step))

	var effectID string
	require.NoError(t, s.db.QueryRow(
		"SELECT effect_id FROM dispatches WHERE run_id = ? AND seq = ?", "run-a", int64(1),
	).Scan(&effectID))
	assert.Equal(t, step.Effect.MustID(), effectID)
}

func TestReadRun_Empty(t *testing.T) {
	s := testStore(t)

	steps, err := s.ReadRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.NotNil(t, steps)
	assert.Empty(t, steps)
}

func TestListRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, s.WriteDispatch(ctx, "run-b", sampleStep(1)))
	require.NoError(t, s.WriteDispatch(ctx, "run-a", sampleStep(1)))
	require.NoError(t, s.WriteDispatch(ctx, "run-a", sampleStep(2)))

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, runs)
}

func TestLastSeq(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx, "run-a")
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, s.WriteDispatch(ctx, "run-a", sampleStep(1)))
	require.NoError(t, s.WriteDispatch(ctx, "run-a", sampleStep(2)))

	seq, err = s.LastSeq(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}

func TestStore_JournalsDriverRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	fixed := func() time.Time { return time.UnixMilli(42_000) }
	reg, err := registry.New(runner.NewClock(fixed, time.Second))
	require.NoError(t, err)

	d := driver.New(reg,
		driver.WithJournal(s),
		driver.WithTokenGenerator(testutil.NewFixedTokenGenerator("run-journal")),
		driver.WithLogger(testutil.DiscardLogger()),
	)

	_, err = d.Run(ctx, driver.Func{
		ProgramName: "two-clock-reads",
		Body: func(ctx context.Context, y driver.Yielder) (effect.Value, error) {
			y.Perform(effect.TimeNow())
			out := y.Perform(effect.TimeNow())
			return out.Value, nil
		},
	})
	require.NoError(t, err)

	steps, err := s.ReadRun(ctx, "run-journal")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	for i, step := range steps {
		assert.Equal(t, int64(i+1), step.Seq)
		assert.Equal(t, effect.KindTimeNow, step.Effect.Kind)
		millis, ok := step.Outcome.Value.Int64("millis")
		require.True(t, ok)
		assert.Equal(t, int64(42_000), millis)
	}
}
