package tracegen

import (
	"fmt"

	"github.com/Tuee22/parapet/internal/effect"
)

// Generator names the generation algorithm and format version embedded
// in every trace file. Bump on any change to the walk or the encoding;
// old traces are then regenerated, never migrated.
const Generator = "parapet.tracegen/v1"

// Trace is one generated conformance run: an ordered sequence of
// effects with the modeled outcome set accepted for each.
type Trace struct {
	Machine  string
	SpecHash string
	Steps    []Step
}

// Step issues one effect and accepts any member of its Accept set.
type Step struct {
	Action string
	Params effect.Object
	Effect effect.Effect
	Accept []Expectation
}

// Expectation is one acceptable outcome. A nil Value matches on case
// alone, which is how the model describes outcomes whose payload it
// cannot predict (wall-clock reads, random bytes).
type Expectation struct {
	Case  string
	Value effect.Object
}

// Matches reports whether the actual outcome satisfies this
// expectation. Diagnostics never participate in matching.
func (x Expectation) Matches(out effect.Outcome) bool {
	if out.Case != x.Case {
		return false
	}
	if x.Value == nil {
		return true
	}
	return effect.Equal(x.Value, out.Value)
}

// Accepted reports whether any member of the step's accept set matches
// the actual outcome.
func (s Step) Accepted(out effect.Outcome) bool {
	for _, x := range s.Accept {
		if x.Matches(out) {
			return true
		}
	}
	return false
}

// Encode renders the trace as canonical JSON. Equal traces encode to
// identical bytes; the determinism gate compares these bytes directly.
func Encode(tr *Trace) ([]byte, error) {
	steps := make(effect.Array, len(tr.Steps))
	for i, s := range tr.Steps {
		accept := make(effect.Array, len(s.Accept))
		for j, x := range s.Accept {
			entry := effect.Object{"case": effect.String(x.Case)}
			if x.Value != nil {
				entry["value"] = x.Value
			}
			accept[j] = entry
		}

		params := s.Params
		if params == nil {
			params = effect.Object{}
		}

		steps[i] = effect.Object{
			"action": effect.String(s.Action),
			"params": params,
			"effect": effect.Object{
				"kind":    effect.String(string(s.Effect.Kind)),
				"payload": s.Effect.Payload,
			},
			"accept": accept,
		}
	}

	doc := effect.Object{
		"generator": effect.String(Generator),
		"machine":   effect.String(tr.Machine),
		"spec_hash": effect.String(tr.SpecHash),
		"steps":     steps,
	}
	return effect.MarshalCanonical(doc)
}

// Hash is the domain-separated content hash of the encoded trace.
func Hash(tr *Trace) (string, error) {
	data, err := Encode(tr)
	if err != nil {
		return "", err
	}
	return effect.HashBytes(effect.DomainTrace, data), nil
}

// Decode parses a canonical trace file. Decoding is strict: unknown
// generators and malformed steps are errors, not warnings, because
// trace files are build artifacts that only this package writes.
func Decode(data []byte) (*Trace, error) {
	v, err := effect.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("parsing trace: %w", err)
	}
	doc, ok := v.(effect.Object)
	if !ok {
		return nil, fmt.Errorf("trace root must be an object")
	}

	gen, ok := doc.Str("generator")
	if !ok {
		return nil, fmt.Errorf("trace missing generator")
	}
	if gen != Generator {
		return nil, fmt.Errorf("unsupported trace generator %q (want %q)", gen, Generator)
	}

	tr := &Trace{}
	if tr.Machine, ok = doc.Str("machine"); !ok {
		return nil, fmt.Errorf("trace missing machine")
	}
	if tr.SpecHash, ok = doc.Str("spec_hash"); !ok {
		return nil, fmt.Errorf("trace missing spec_hash")
	}

	stepsArr, ok := doc.Arr("steps")
	if !ok {
		return nil, fmt.Errorf("trace missing steps")
	}
	for i, sv := range stepsArr {
		step, err := decodeStep(sv)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		tr.Steps = append(tr.Steps, step)
	}
	return tr, nil
}

func decodeStep(v effect.Value) (Step, error) {
	var s Step
	obj, ok := v.(effect.Object)
	if !ok {
		return s, fmt.Errorf("step must be an object")
	}

	if s.Action, ok = obj.Str("action"); !ok {
		return s, fmt.Errorf("missing action")
	}
	if s.Params, ok = obj.Obj("params"); !ok {
		return s, fmt.Errorf("missing params")
	}

	effObj, ok := obj.Obj("effect")
	if !ok {
		return s, fmt.Errorf("missing effect")
	}
	kind, ok := effObj.Str("kind")
	if !ok {
		return s, fmt.Errorf("effect missing kind")
	}
	payload, ok := effObj.Obj("payload")
	if !ok {
		return s, fmt.Errorf("effect missing payload")
	}
	s.Effect = effect.Effect{Kind: effect.Kind(kind), Payload: payload}
	if !s.Effect.Kind.Valid() {
		return s, fmt.Errorf("unknown effect kind %q", kind)
	}

	acceptArr, ok := obj.Arr("accept")
	if !ok || len(acceptArr) == 0 {
		return s, fmt.Errorf("accept set must not be empty")
	}
	for _, av := range acceptArr {
		aobj, ok := av.(effect.Object)
		if !ok {
			return s, fmt.Errorf("accept entry must be an object")
		}
		var x Expectation
		if x.Case, ok = aobj.Str("case"); !ok {
			return s, fmt.Errorf("accept entry missing case")
		}
		if !effect.KnownCase(s.Effect.Kind, x.Case) {
			return s, fmt.Errorf("case %q is not in the %s variant table", x.Case, s.Effect.Kind)
		}
		if val, has := aobj.Obj("value"); has {
			x.Value = val
		}
		s.Accept = append(s.Accept, x)
	}
	return s, nil
}
