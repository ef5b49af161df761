package effect

import "fmt"

// Shared variant names. Every kind's enumeration ends with timeout and
// unknown because the runner boundary can produce both for any kind:
// timeout when the budget expires, unknown for an unclassifiable fault.
const (
	CaseTimeout = "timeout"
	CaseUnknown = "unknown"

	CaseMissing      = "missing"
	CaseNoRows       = "no_rows"
	CaseMultipleRows = "multiple_rows"
	CaseConflict     = "conflict"
	CaseInvalid      = "invalid"
	CaseConnection   = "connection"
)

// Variant is one declared outcome case of an effect kind. Failure marks
// error variants; data variants (ok, missing) model expected states,
// not faults.
type Variant struct {
	Name    string
	Failure bool
}

// variantTable is the closed, versioned error taxonomy. Consumers match
// exhaustively against one contract version; adding a variant to a kind
// is a breaking change that bumps that kind's contract version.
var variantTable = map[Kind][]Variant{
	KindDBQuery: {
		{Name: CaseOK},
		{Name: CaseNoRows, Failure: true},
		{Name: CaseMultipleRows, Failure: true},
		{Name: CaseConflict, Failure: true},
		{Name: CaseInvalid, Failure: true},
		{Name: CaseConnection, Failure: true},
		{Name: CaseTimeout, Failure: true},
		{Name: CaseUnknown, Failure: true},
	},
	KindHTTPRequest: {
		{Name: CaseOK},
		{Name: CaseInvalid, Failure: true},
		{Name: CaseConnection, Failure: true},
		{Name: CaseTimeout, Failure: true},
		{Name: CaseUnknown, Failure: true},
	},
	KindKVGet: {
		{Name: CaseOK},
		{Name: CaseMissing},
		{Name: CaseTimeout, Failure: true},
		{Name: CaseUnknown, Failure: true},
	},
	KindKVSet: {
		{Name: CaseOK},
		{Name: CaseInvalid, Failure: true},
		{Name: CaseTimeout, Failure: true},
		{Name: CaseUnknown, Failure: true},
	},
	KindKVDelete: {
		{Name: CaseOK},
		{Name: CaseMissing},
		{Name: CaseTimeout, Failure: true},
		{Name: CaseUnknown, Failure: true},
	},
	KindTimeNow: {
		{Name: CaseOK},
		{Name: CaseTimeout, Failure: true},
		{Name: CaseUnknown, Failure: true},
	},
	KindRandBytes: {
		{Name: CaseOK},
		{Name: CaseInvalid, Failure: true},
		{Name: CaseTimeout, Failure: true},
		{Name: CaseUnknown, Failure: true},
	},
	KindLogWrite: {
		{Name: CaseOK},
		{Name: CaseInvalid, Failure: true},
		{Name: CaseTimeout, Failure: true},
		{Name: CaseUnknown, Failure: true},
	},
}

// contractVersions tracks the major contract version per kind.
var contractVersions = map[Kind]int{
	KindDBQuery:     1,
	KindHTTPRequest: 1,
	KindKVGet:       1,
	KindKVSet:       1,
	KindKVDelete:    1,
	KindTimeNow:     1,
	KindRandBytes:   1,
	KindLogWrite:    1,
}

// Variants returns the declared outcome variants of a kind, in contract
// order. The returned slice is a copy.
func Variants(k Kind) []Variant {
	vs := variantTable[k]
	out := make([]Variant, len(vs))
	copy(out, vs)
	return out
}

// KnownCase reports whether name is a declared variant of kind k.
func KnownCase(k Kind, name string) bool {
	for _, v := range variantTable[k] {
		if v.Name == name {
			return true
		}
	}
	return false
}

// IsFailure reports whether name is a declared failure variant of k.
// Undeclared names are treated as failures so nothing slips through a
// data-variant branch by typo.
func IsFailure(k Kind, name string) bool {
	for _, v := range variantTable[k] {
		if v.Name == name {
			return v.Failure
		}
	}
	return true
}

// ContractVersion returns the major contract version of a kind's
// variant enumeration.
func ContractVersion(k Kind) int {
	return contractVersions[k]
}

// Match dispatches an outcome to the handler registered for its case.
// Matching is runtime-strict: the handler map must cover every declared
// variant of the kind, and the outcome's case must be declared.
// Go has no static exhaustiveness check for string variants, so this is
// the enforced substitute; a missing branch fails loudly instead of
// silently swallowing a variant.
func Match(k Kind, out Outcome, handlers map[string]func(Outcome) error) error {
	declared := variantTable[k]
	if declared == nil {
		return fmt.Errorf("match: unknown effect kind %q", k)
	}
	for _, v := range declared {
		if _, ok := handlers[v.Name]; !ok {
			return fmt.Errorf("match: non-exhaustive handling for %s: missing variant %q", k, v.Name)
		}
	}
	for name := range handlers {
		if !KnownCase(k, name) {
			return fmt.Errorf("match: handler for undeclared variant %q of %s", name, k)
		}
	}
	h, ok := handlers[out.Case]
	if !ok {
		return fmt.Errorf("match: outcome case %q is not a declared variant of %s", out.Case, k)
	}
	return h(out)
}
