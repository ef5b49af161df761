package runner

import (
	"context"
	"time"

	"github.com/Tuee22/parapet/internal/effect"
)

// NewClock builds the time.now runner. The time source is injected so
// conformance fixtures can pin the reading; nil uses time.Now.
func NewClock(now func() time.Time, timeout time.Duration) Runner {
	if now == nil {
		now = time.Now
	}
	r := &clockRunner{now: now}
	return newGuarded(effect.KindTimeNow, timeout, r.run)
}

type clockRunner struct {
	now func() time.Time
}

func (r *clockRunner) run(_ context.Context, _ effect.Object) effect.Outcome {
	return effect.Ok(effect.Object{
		"millis": effect.Int(r.now().UnixMilli()),
	})
}
