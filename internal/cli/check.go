package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tuee22/parapet/internal/modelcheck"
	"github.com/Tuee22/parapet/internal/spec"
)

// CheckResult holds model-checking results for JSON output.
type CheckResult struct {
	Machine     string `json:"machine"`
	States      int    `json:"states"`
	Transitions int    `json:"transitions"`
	Depth       int    `json:"depth"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var maxStates, maxDepth int

	cmd := &cobra.Command{
		Use:   "check <spec.cue>",
		Short: "Model-check a machine specification",
		Long: `Exhaustively explore the reachable state space of a machine spec.

Reports the state count, transition count, and exploration depth on
success. Invariant violations print a shortest counterexample path;
liveness failures print the properties no reachable state satisfies.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], maxStates, maxDepth, cmd)
		},
	}

	cmd.Flags().IntVar(&maxStates, "max-states", 0, "state exploration bound (0 = default)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "path depth bound (0 = default)")

	return cmd
}

func runCheck(opts *RootOptions, specPath string, maxStates, maxDepth int, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	m, err := spec.Load(specPath)
	if err != nil {
		_ = formatter.Error("spec", err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading spec", err)
	}

	formatter.VerboseLog("Checking machine %s (%d vars, %d actions)", m.Name, len(m.Vars), len(m.Actions))

	res, err := modelcheck.Check(m, modelcheck.Options{MaxStates: maxStates, MaxDepth: maxDepth})
	if err != nil {
		return checkFailure(formatter, m.Name, err)
	}

	result := CheckResult{
		Machine:     m.Name,
		States:      res.States,
		Transitions: res.Transitions,
		Depth:       res.Depth,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s: %d states, %d transitions, depth %d\n",
		result.Machine, result.States, result.Transitions, result.Depth)
	return nil
}

// checkFailure classifies a model-checking error: property violations
// and bound exhaustion are verification failures (exit 1), everything
// else is a command error.
func checkFailure(formatter *OutputFormatter, machine string, err error) error {
	if !isVerificationError(err) {
		_ = formatter.Error("check", err.Error(), nil)
		return WrapExitError(ExitCommandError, "model checking", err)
	}

	if formatter.Format == "json" {
		_ = formatter.Error("check", err.Error(), nil)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s: %v\n", machine, err)
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("machine %s failed model checking", machine), err)
}
