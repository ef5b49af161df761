package store

import (
	"context"
	"fmt"

	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/registry"
)

// Drift is one step of a replayed run whose live outcome differed from
// the recorded one. Outcome identity ignores Diag, so diagnostics alone
// never count as drift.
type Drift struct {
	Seq      int64
	Effect   effect.Effect
	Recorded effect.Outcome
	Actual   effect.Outcome
}

// ReplayReport summarizes re-dispatching a recorded run against live
// runners.
type ReplayReport struct {
	RunID  string
	Steps  int
	Pass   bool
	Drifts []Drift
}

// Replay re-dispatches every recorded effect of a run through the given
// registry, in seq order, and compares each live outcome to the
// recorded one. All drifting steps are collected, not just the first.
//
// Replay only makes sense against runners whose behavior is meant to be
// reproducible (fixed clocks, preloaded stores); a wall clock will
// drift on every time.now step.
func (s *Store) Replay(ctx context.Context, reg *registry.Registry, runID string) (ReplayReport, error) {
	steps, err := s.ReadRun(ctx, runID)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay %s: %w", runID, err)
	}
	if len(steps) == 0 {
		return ReplayReport{}, fmt.Errorf("replay %s: no recorded dispatches", runID)
	}

	report := ReplayReport{RunID: runID, Steps: len(steps)}
	for _, step := range steps {
		actual := reg.Dispatch(ctx, step.Effect)
		if !actual.Equal(step.Outcome) {
			report.Drifts = append(report.Drifts, Drift{
				Seq:      step.Seq,
				Effect:   step.Effect,
				Recorded: step.Outcome,
				Actual:   actual,
			})
		}
	}
	report.Pass = len(report.Drifts) == 0

	return report, nil
}
