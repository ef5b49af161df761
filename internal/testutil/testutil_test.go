package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedTokenGenerator_Sequence(t *testing.T) {
	g := NewFixedTokenGenerator("a", "b", "c")

	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, 1, g.Remaining())
	assert.Equal(t, "c", g.Generate())

	assert.Panics(t, func() { g.Generate() }, "exhausting the sequence is a test bug")
}

func TestFixedTokenGenerator_AutoNumbered(t *testing.T) {
	g := NewFixedTokenGenerator()

	assert.Equal(t, "test-run-1", g.Generate())
	assert.Equal(t, "test-run-2", g.Generate())
	assert.Equal(t, 0, g.Remaining())
}

func TestFixedTokenGenerator_Concurrent(t *testing.T) {
	g := NewFixedTokenGenerator()

	var wg sync.WaitGroup
	seen := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- g.Generate()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[string]struct{})
	for tok := range seen {
		unique[tok] = struct{}{}
	}
	require.Len(t, unique, 100, "every token must be distinct")
}

func TestWallClock(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewWallClock(base)

	assert.Equal(t, base, c.Now())
	assert.Equal(t, base, c.Now(), "frozen clock never drifts")

	c.Advance(90 * time.Second)
	assert.Equal(t, base.Add(90*time.Second), c.Now())

	c.Set(base)
	assert.Equal(t, base, c.Now())
}

func TestDiscardLogger(t *testing.T) {
	logger := DiscardLogger()
	require.NotNil(t, logger)
	// Must not panic on any level or attr shape.
	logger.Info("msg", "k", "v")
	logger.Error("msg", "err", assert.AnError)
}
