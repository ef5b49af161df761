package conformance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/modelcheck"
	"github.com/Tuee22/parapet/internal/registry"
	"github.com/Tuee22/parapet/internal/spec"
	"github.com/Tuee22/parapet/internal/tracegen"
)

// Divergence records one trace step whose actual outcome matched no
// member of the modeled accept set.
type Divergence struct {
	Index  int
	Action string
	Accept []tracegen.Expectation
	Actual effect.Outcome
}

// Report is the pass/fail result of replaying one trace. It serializes
// to canonical JSON for CI consumption.
type Report struct {
	Suite       string
	Machine     string
	SpecHash    string
	TraceHash   string
	Steps       int
	Pass        bool
	Divergences []Divergence
}

// Encode renders the report as canonical JSON. Passing reports are
// fully deterministic; failing reports carry the actual outcomes,
// including diagnostics, because a CI reader needs them.
func (r *Report) Encode() ([]byte, error) {
	divs := make(effect.Array, len(r.Divergences))
	for i, d := range r.Divergences {
		accept := make(effect.Array, len(d.Accept))
		for j, x := range d.Accept {
			entry := effect.Object{"case": effect.String(x.Case)}
			if x.Value != nil {
				entry["value"] = x.Value
			}
			accept[j] = entry
		}
		actual := effect.Object{"case": effect.String(d.Actual.Case)}
		if d.Actual.Value != nil {
			actual["value"] = d.Actual.Value
		}
		if d.Actual.Diag != "" {
			actual["diag"] = effect.String(d.Actual.Diag)
		}
		divs[i] = effect.Object{
			"index":  effect.Int(int64(d.Index)),
			"action": effect.String(d.Action),
			"accept": accept,
			"actual": actual,
		}
	}

	return effect.MarshalCanonical(effect.Object{
		"suite":       effect.String(r.Suite),
		"machine":     effect.String(r.Machine),
		"spec_hash":   effect.String(r.SpecHash),
		"trace_hash":  effect.String(r.TraceHash),
		"steps":       effect.Int(int64(r.Steps)),
		"pass":        effect.Bool(r.Pass),
		"divergences": divs,
	})
}

// Replay dispatches every trace step through the registry in order and
// checks each actual outcome against the step's accept set. All steps
// run even after a divergence: later steps may diverge for independent
// reasons, and the full list is worth more than the first hit.
func Replay(ctx context.Context, reg *registry.Registry, tr *tracegen.Trace) (*Report, error) {
	traceHash, err := tracegen.Hash(tr)
	if err != nil {
		return nil, fmt.Errorf("hashing trace: %w", err)
	}

	report := &Report{
		Machine:   tr.Machine,
		SpecHash:  tr.SpecHash,
		TraceHash: traceHash,
		Steps:     len(tr.Steps),
	}

	for i, step := range tr.Steps {
		out := reg.Dispatch(ctx, step.Effect)
		if !step.Accepted(out) {
			report.Divergences = append(report.Divergences, Divergence{
				Index:  i,
				Action: step.Action,
				Accept: step.Accept,
				Actual: out,
			})
		}
	}

	report.Pass = len(report.Divergences) == 0
	return report, nil
}

// RunSuite executes the whole pipeline for one suite file: load the
// suite, load and validate its machine, model-check it, generate the
// trace, build the registry, and replay. Counterexamples and
// generation failures surface as errors; runner divergences surface in
// the report.
func RunSuite(ctx context.Context, path string, logger *slog.Logger) (*Report, error) {
	suite, err := LoadSuite(path)
	if err != nil {
		return nil, err
	}

	m, err := spec.Load(suite.Spec)
	if err != nil {
		return nil, err
	}

	tr, err := tracegen.Generate(m, tracegen.Options{
		MaxSteps: suite.MaxSteps,
		Check:    modelcheck.Options{},
	})
	if err != nil {
		return nil, err
	}

	reg, cleanup, err := BuildRegistry(suite, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	report, err := Replay(ctx, reg, tr)
	if err != nil {
		return nil, err
	}
	report.Suite = suite.Name
	return report, nil
}
