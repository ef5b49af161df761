package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Tuee22/parapet/internal/modelcheck"
	"github.com/Tuee22/parapet/internal/spec"
	"github.com/Tuee22/parapet/internal/tracegen"
)

// GenResult holds trace generation results for JSON output.
type GenResult struct {
	Machine   string `json:"machine"`
	Steps     int    `json:"steps"`
	Path      string `json:"path"`
	TraceHash string `json:"trace_hash"`
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	var outputDir string
	var maxSteps int

	cmd := &cobra.Command{
		Use:   "gen <spec.cue>",
		Short: "Generate a conformance trace from a machine specification",
		Long: `Model-check a machine spec and generate its conformance trace.

The trace is written as canonical JSON to <machine>.trace.json in the
output directory. Generation is deterministic: the same spec bytes
always produce the same trace bytes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(rootOpts, args[0], outputDir, maxSteps, cmd)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory for trace files")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "walk length bound (0 = default)")

	return cmd
}

func runGen(opts *RootOptions, specPath, outputDir string, maxSteps int, cmd *cobra.Command) error {
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

	tr, err := tracegen.Generate(m, tracegen.Options{MaxSteps: maxSteps})
	if err != nil {
		if isVerificationError(err) {
			_ = formatter.Error("gen", err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("machine %s failed model checking", m.Name), err)
		}
		_ = formatter.Error("gen", err.Error(), nil)
		return WrapExitError(ExitCommandError, "generating trace", err)
	}

	data, err := tracegen.Encode(tr)
	if err != nil {
		_ = formatter.Error("gen", err.Error(), nil)
		return WrapExitError(ExitCommandError, "encoding trace", err)
	}
	hash, err := tracegen.Hash(tr)
	if err != nil {
		_ = formatter.Error("gen", err.Error(), nil)
		return WrapExitError(ExitCommandError, "hashing trace", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		_ = formatter.Error("gen", err.Error(), nil)
		return WrapExitError(ExitCommandError, "creating output directory", err)
	}
	outPath := filepath.Join(outputDir, m.Name+".trace.json")
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		_ = formatter.Error("gen", err.Error(), nil)
		return WrapExitError(ExitCommandError, "writing trace", err)
	}

	formatter.VerboseLog("Wrote %d bytes to %s", len(data), outPath)

	result := GenResult{
		Machine:   m.Name,
		Steps:     len(tr.Steps),
		Path:      outPath,
		TraceHash: hash,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s: %d steps → %s\n", result.Machine, result.Steps, result.Path)
	fmt.Fprintf(formatter.Writer, "  trace hash %s\n", result.TraceHash)
	return nil
}

// isVerificationError reports whether err is a model-checking property
// violation or bound exhaustion rather than an operational failure.
func isVerificationError(err error) bool {
	var (
		invErr    *modelcheck.InvariantError
		liveErr   *modelcheck.LivenessError
		boundErr  *modelcheck.BoundError
		escapeErr *modelcheck.DomainEscapeError
	)
	return errors.As(err, &invErr) ||
		errors.As(err, &liveErr) ||
		errors.As(err, &boundErr) ||
		errors.As(err, &escapeErr)
}
