// Package effect defines the pure data layer of the effect core: effect
// values, the constrained payload value model, canonical JSON
// serialization, content addressing, and the closed per-kind outcome
// taxonomy.
//
// Nothing in this package performs I/O. An Effect is an immutable,
// self-contained description of one requested side effect; an Outcome is
// the success-or-typed-failure result a runner returns for it. Two
// effects with equal payloads serialize to identical canonical bytes and
// therefore share an ID, which is what makes dedup/caching by an
// optimizer layer sound.
//
// Payload values are restricted to string, int64, bool, array, and
// object. Floats and nulls are forbidden: both break deterministic
// hashing and cross-language replay.
package effect
