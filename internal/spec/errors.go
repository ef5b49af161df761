package spec

import (
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateError reports a structural violation found after compilation:
// an undeclared reference, a domain violation, a duplicate name.
type ValidateError struct {
	Machine string
	Field   string
	Message string
}

func (e *ValidateError) Error() string {
	return fmt.Sprintf("machine %q: %s: %s", e.Machine, e.Field, e.Message)
}

// EvalError reports an expression evaluation failure.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval %s: %s", e.Expr, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
