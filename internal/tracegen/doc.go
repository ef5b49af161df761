// Package tracegen turns a model-checked spec.Machine into concrete
// conformance traces: ordered steps pairing the effect to issue with
// the set of outcomes the model accepts for it.
//
// Generation is fully deterministic. Trace files are canonical JSON
// carrying the content hash of the generating spec; running the
// generator twice over identical input must produce byte-identical
// output, which is what the determinism gate asserts.
package tracegen
