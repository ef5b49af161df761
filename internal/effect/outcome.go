package effect

import (
	"fmt"
)

// CaseOK is the success variant shared by every effect kind.
const CaseOK = "ok"

// Outcome is the two-sided result of one runner invocation: either the
// success case carrying a payload value, or a typed variant from the
// effect kind's closed enumeration. Outcomes are returned, never thrown.
//
// Diag carries the original diagnostic text for boundary-caught faults
// (most importantly the unknown variant) so no information is silently
// dropped. Diag is excluded from outcome identity: two outcomes with the
// same case and value are equal regardless of diagnostics.
type Outcome struct {
	Case  string `json:"case"`
	Value Object `json:"value"`
	Diag  string `json:"diag,omitempty"`
}

// Ok builds a success outcome with the given payload.
func Ok(value Object) Outcome {
	if value == nil {
		value = Object{}
	}
	return Outcome{Case: CaseOK, Value: value}
}

// Data builds a non-failure outcome for a named data variant, e.g. the
// kv.get missing case. Absence is data, not an error.
func Data(caseName string, value Object) Outcome {
	if value == nil {
		value = Object{}
	}
	return Outcome{Case: caseName, Value: value}
}

// Fail builds a failure outcome with a diagnostic.
func Fail(caseName, diag string) Outcome {
	return Outcome{Case: caseName, Value: Object{}, Diag: diag}
}

// Failf builds a failure outcome with a formatted diagnostic.
func Failf(caseName, format string, args ...any) Outcome {
	return Fail(caseName, fmt.Sprintf(format, args...))
}

// OK reports whether the outcome is the success case.
func (o Outcome) OK() bool {
	return o.Case == CaseOK
}

// Equal reports outcome identity: same case and canonically equal value.
// Diagnostics do not participate.
func (o Outcome) Equal(other Outcome) bool {
	return o.Case == other.Case && Equal(o.normValue(), other.normValue())
}

func (o Outcome) normValue() Object {
	if o.Value == nil {
		return Object{}
	}
	return o.Value
}

// ID computes the content-addressed identity of the outcome.
// Diag is deliberately excluded: identity is case plus value.
func (o Outcome) ID() (string, error) {
	canonical, err := MarshalCanonical(Object{
		"case":  String(o.Case),
		"value": o.normValue(),
	})
	if err != nil {
		return "", fmt.Errorf("outcome ID: %w", err)
	}
	return hashWithDomain(DomainOutcome, canonical), nil
}

// Err converts a failure outcome of the given kind into a typed error.
// Returns nil for success and data variants. The program driver treats a
// returned *VariantError as an unhandled typed failure and terminates
// the program instance in the Failed state with it preserved.
func (o Outcome) Err(kind Kind) error {
	if !IsFailure(kind, o.Case) {
		return nil
	}
	return &VariantError{Kind: kind, Case: o.Case, Diag: o.Diag}
}

// VariantError is a typed failure variant escaping a program's own
// handling. It preserves the kind, variant name, and original
// diagnostic; it is never flattened into an opaque generic failure.
type VariantError struct {
	Kind Kind
	Case string
	Diag string
}

func (e *VariantError) Error() string {
	if e.Diag == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Case)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Case, e.Diag)
}
