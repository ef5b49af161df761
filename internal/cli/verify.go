package cli

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tuee22/parapet/internal/conformance"
	"github.com/Tuee22/parapet/internal/modelcheck"
	"github.com/Tuee22/parapet/internal/spec"
	"github.com/Tuee22/parapet/internal/tracegen"
)

// VerifyResult holds full-pipeline verification results for JSON output.
type VerifyResult struct {
	Suite         string `json:"suite"`
	Machine       string `json:"machine"`
	States        int    `json:"states"`
	Transitions   int    `json:"transitions"`
	Steps         int    `json:"steps"`
	TraceHash     string `json:"trace_hash"`
	Deterministic bool   `json:"deterministic"`
	Pass          bool   `json:"pass"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <suite.yaml>",
		Short: "Run the full verification pipeline for a suite",
		Long: `Model-check, generate, and replay in one pass, with the determinism
gate in between: the trace is generated twice and the two encodings
must be byte-identical before replay runs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runVerify(opts *RootOptions, suitePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	suite, err := conformance.LoadSuite(suitePath)
	if err != nil {
		_ = formatter.Error("suite", err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading suite", err)
	}

	m, err := spec.Load(suite.Spec)
	if err != nil {
		_ = formatter.Error("spec", err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading spec", err)
	}

	res, err := modelcheck.Check(m, modelcheck.Options{})
	if err != nil {
		return checkFailure(formatter, m.Name, err)
	}
	formatter.VerboseLog("check: %d states, %d transitions, depth %d", res.States, res.Transitions, res.Depth)

	// Determinism gate: two independent generations of the same machine
	// must produce byte-identical trace encodings.
	genOpts := tracegen.Options{MaxSteps: suite.MaxSteps}
	first, err := tracegen.Generate(m, genOpts)
	if err != nil {
		_ = formatter.Error("gen", err.Error(), nil)
		return WrapExitError(ExitCommandError, "generating trace", err)
	}
	second, err := tracegen.Generate(m, genOpts)
	if err != nil {
		_ = formatter.Error("gen", err.Error(), nil)
		return WrapExitError(ExitCommandError, "regenerating trace", err)
	}
	firstBytes, err := tracegen.Encode(first)
	if err != nil {
		_ = formatter.Error("gen", err.Error(), nil)
		return WrapExitError(ExitCommandError, "encoding trace", err)
	}
	secondBytes, err := tracegen.Encode(second)
	if err != nil {
		_ = formatter.Error("gen", err.Error(), nil)
		return WrapExitError(ExitCommandError, "encoding trace", err)
	}
	if !bytes.Equal(firstBytes, secondBytes) {
		msg := fmt.Sprintf("machine %s: regeneration produced different bytes (%d vs %d)",
			m.Name, len(firstBytes), len(secondBytes))
		_ = formatter.Error("determinism", msg, nil)
		return NewExitError(ExitFailure, msg)
	}
	formatter.VerboseLog("gen: %d steps, regeneration byte-identical", len(first.Steps))

	reg, cleanup, err := conformance.BuildRegistry(suite, commandLogger(opts, cmd))
	if err != nil {
		_ = formatter.Error("suite", err.Error(), nil)
		return WrapExitError(ExitCommandError, "building runners", err)
	}
	defer cleanup()

	report, err := conformance.Replay(cmd.Context(), reg, first)
	if err != nil {
		_ = formatter.Error("replay", err.Error(), nil)
		return WrapExitError(ExitCommandError, "replaying trace", err)
	}
	report.Suite = suite.Name

	result := VerifyResult{
		Suite:         report.Suite,
		Machine:       report.Machine,
		States:        res.States,
		Transitions:   res.Transitions,
		Steps:         report.Steps,
		TraceHash:     report.TraceHash,
		Deterministic: true,
		Pass:          report.Pass,
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		mark := "✓"
		if !result.Pass {
			mark = "✗"
		}
		fmt.Fprintf(formatter.Writer, "%s %s: machine %s verified\n", mark, result.Suite, result.Machine)
		fmt.Fprintf(formatter.Writer, "  check: %d states, %d transitions\n", result.States, result.Transitions)
		fmt.Fprintf(formatter.Writer, "  gen:   %d steps, byte-identical regeneration\n", result.Steps)
		for _, d := range report.Divergences {
			fmt.Fprintf(formatter.Writer, "  step %d (%s): got %s\n", d.Index, d.Action, d.Actual.Case)
		}
	}

	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("suite %s diverged on %d step(s)", report.Suite, len(report.Divergences)))
	}
	return nil
}
