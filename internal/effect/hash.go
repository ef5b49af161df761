package effect

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without ID collisions.
const (
	DomainEffect   = "parapet/effect/v1"
	DomainOutcome  = "parapet/outcome/v1"
	DomainSpec     = "parapet/spec/v1"
	DomainTrace    = "parapet/trace/v1"
	DomainDispatch = "parapet/dispatch/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain || 0x00 || data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashBytes computes a domain-separated hash over raw bytes.
// Used for spec files and generated trace artifacts.
func HashBytes(domain string, data []byte) string {
	return hashWithDomain(domain, data)
}
