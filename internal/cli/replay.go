package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tuee22/parapet/internal/conformance"
	"github.com/Tuee22/parapet/internal/store"
)

// ReplayDrift is one drifting step in a replay, for JSON output.
type ReplayDrift struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	Recorded string `json:"recorded"`
	Actual   string `json:"actual"`
}

// ReplayResult holds journal replay results for JSON output.
type ReplayResult struct {
	RunID  string        `json:"run_id"`
	Steps  int           `json:"steps"`
	Pass   bool          `json:"pass"`
	Drifts []ReplayDrift `json:"drifts,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var suitePath string

	cmd := &cobra.Command{
		Use:   "replay <journal.db> <run-id>",
		Short: "Re-dispatch a recorded run and report outcome drift",
		Long: `Read a run's dispatch journal and re-issue every recorded effect
through runners built from a suite file, comparing each live outcome to
the recorded one. Diagnostics are excluded from the comparison; a case
or value difference on any step is drift.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args[0], args[1], suitePath, cmd)
		},
	}

	cmd.Flags().StringVar(&suitePath, "suite", "", "suite file providing runner configuration (required)")
	_ = cmd.MarkFlagRequired("suite")

	return cmd
}

func runReplay(opts *RootOptions, dbPath, runID, suitePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Open would create an empty database; a missing journal is a usage
	// error, not an empty run.
	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error("journal", err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening journal", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error("journal", err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening journal", err)
	}
	defer s.Close()

	suite, err := conformance.LoadSuite(suitePath)
	if err != nil {
		_ = formatter.Error("suite", err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading suite", err)
	}
	reg, cleanup, err := conformance.BuildRegistry(suite, commandLogger(opts, cmd))
	if err != nil {
		_ = formatter.Error("suite", err.Error(), nil)
		return WrapExitError(ExitCommandError, "building runners", err)
	}
	defer cleanup()

	report, err := s.Replay(cmd.Context(), reg, runID)
	if err != nil {
		_ = formatter.Error("replay", err.Error(), nil)
		return WrapExitError(ExitCommandError, "replaying run", err)
	}

	result := ReplayResult{
		RunID: report.RunID,
		Steps: report.Steps,
		Pass:  report.Pass,
	}
	for _, d := range report.Drifts {
		result.Drifts = append(result.Drifts, ReplayDrift{
			Seq:      d.Seq,
			Kind:     string(d.Effect.Kind),
			Recorded: d.Recorded.Case,
			Actual:   d.Actual.Case,
		})
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
		fmt.Fprintf(formatter.Writer, "%s run %s: %d steps replayed\n", mark, result.RunID, result.Steps)
		for _, d := range report.Drifts {
			fmt.Fprintf(formatter.Writer, "  seq %d (%s): recorded %s, got %s", d.Seq, d.Effect.Kind, d.Recorded.Case, d.Actual.Case)
			if d.Actual.Diag != "" {
				fmt.Fprintf(formatter.Writer, " (%s)", d.Actual.Diag)
			}
			fmt.Fprintln(formatter.Writer)
		}
	}

	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s drifted on %d step(s)", runID, len(report.Drifts)))
	}
	return nil
}
