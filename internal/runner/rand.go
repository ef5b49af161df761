package runner

import (
	"context"
	crand "crypto/rand"
	"encoding/base64"
	"io"
	"time"

	"github.com/Tuee22/parapet/internal/effect"
)

// DefaultMaxRandBytes caps a single rand.bytes request.
const DefaultMaxRandBytes = 1 << 16

// NewRand builds the rand.bytes runner. reader defaults to the
// platform CSPRNG; tests inject a deterministic source.
func NewRand(reader io.Reader, maxCount int64, timeout time.Duration) Runner {
	if reader == nil {
		reader = crand.Reader
	}
	if maxCount <= 0 {
		maxCount = DefaultMaxRandBytes
	}
	r := &randRunner{reader: reader, maxCount: maxCount}
	return newGuarded(effect.KindRandBytes, timeout, r.run)
}

type randRunner struct {
	reader   io.Reader
	maxCount int64
}

func (r *randRunner) run(_ context.Context, payload effect.Object) effect.Outcome {
	count, ok := payload.Int64("count")
	if !ok {
		return effect.Fail(effect.CaseInvalid, "rand.bytes payload missing count")
	}
	if count <= 0 || count > r.maxCount {
		return effect.Failf(effect.CaseInvalid,
			"rand.bytes count must be in [1, %d], got %d", r.maxCount, count)
	}

	buf := make([]byte, count)
	if _, err := io.ReadFull(r.reader, buf); err != nil {
		return effect.Failf(effect.CaseUnknown, "entropy source: %v", err)
	}
	return effect.Ok(effect.Object{
		"bytes": effect.String(base64.StdEncoding.EncodeToString(buf)),
		"count": effect.Int(count),
	})
}
