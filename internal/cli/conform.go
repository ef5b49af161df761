package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Tuee22/parapet/internal/conformance"
)

// NewConformCommand creates the conform command.
func NewConformCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conform <suite.yaml>",
		Short: "Replay a generated trace against live runners",
		Long: `Run the conformance pipeline for one suite file.

Loads the suite, model-checks its machine spec, generates the trace,
builds the configured runners, and replays every step. A step passes
when the actual outcome matches any member of its modeled accept set;
any divergence fails the suite.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConform(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runConform(opts *RootOptions, suitePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	report, err := conformance.RunSuite(cmd.Context(), suitePath, commandLogger(opts, cmd))
	if err != nil {
		_ = formatter.Error("suite", err.Error(), nil)
		return WrapExitError(ExitCommandError, "running suite", err)
	}

	if err := printReport(formatter, report); err != nil {
		return err
	}
	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("suite %s diverged on %d step(s)", report.Suite, len(report.Divergences)))
	}
	return nil
}

// printReport writes a conformance report in the configured format.
// JSON mode emits the report's canonical encoding directly so CI can
// hash or diff it.
func printReport(formatter *OutputFormatter, report *conformance.Report) error {
	if formatter.Format == "json" {
		data, err := report.Encode()
		if err != nil {
			return WrapExitError(ExitCommandError, "encoding report", err)
		}
		fmt.Fprintf(formatter.Writer, "%s\n", data)
		return nil
	}

	mark := "✓"
	if !report.Pass {
		mark = "✗"
	}
	fmt.Fprintf(formatter.Writer, "%s %s: machine %s, %d steps\n", mark, report.Suite, report.Machine, report.Steps)
	fmt.Fprintf(formatter.Writer, "  spec  %s\n", report.SpecHash)
	fmt.Fprintf(formatter.Writer, "  trace %s\n", report.TraceHash)
	for _, d := range report.Divergences {
		fmt.Fprintf(formatter.Writer, "  step %d (%s): got %s", d.Index, d.Action, d.Actual.Case)
		if d.Actual.Diag != "" {
			fmt.Fprintf(formatter.Writer, " (%s)", d.Actual.Diag)
		}
		fmt.Fprint(formatter.Writer, ", accept {")
		for i, x := range d.Accept {
			if i > 0 {
				fmt.Fprint(formatter.Writer, ", ")
			}
			fmt.Fprint(formatter.Writer, x.Case)
		}
		fmt.Fprintln(formatter.Writer, "}")
	}
	return nil
}

// commandLogger returns the runner-construction logger: stderr text in
// verbose mode, discarded otherwise.
func commandLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	if opts.Verbose {
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
