package testutil

import (
	"fmt"
	"sync"
)

// FixedTokenGenerator returns a predetermined sequence of run tokens.
//
// Deterministic tokens make journal contents and golden snapshots
// byte-stable across test runs. Once the sequence is exhausted the
// generator panics: a test that consumes more tokens than it declared
// is a test bug, not a condition to paper over.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FixedTokenGenerator struct {
	mu     sync.Mutex
	tokens []string
	next   int
}

// NewFixedTokenGenerator creates a generator yielding the given tokens
// in order. With no arguments it yields "test-run-1", "test-run-2", ...
// indefinitely.
func NewFixedTokenGenerator(tokens ...string) *FixedTokenGenerator {
	return &FixedTokenGenerator{tokens: tokens}
}

// Generate returns the next token in the sequence.
//
// Implements driver.TokenGenerator.
func (g *FixedTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	if len(g.tokens) == 0 {
		return fmt.Sprintf("test-run-%d", g.next)
	}
	if g.next > len(g.tokens) {
		panic(fmt.Sprintf("testutil: token sequence exhausted after %d tokens", len(g.tokens)))
	}
	return g.tokens[g.next-1]
}

// Remaining returns how many declared tokens are left. Always 0 for
// the auto-numbered form.
func (g *FixedTokenGenerator) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.tokens) == 0 {
		return 0
	}
	return len(g.tokens) - g.next
}
