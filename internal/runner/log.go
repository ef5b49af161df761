package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/Tuee22/parapet/internal/effect"
)

// NewLog builds the log.write runner over an injected slog logger.
// Logging is a regular effect dispatched through the registry, not a
// side channel: from the driver's perspective it is indistinguishable
// from any other yielded effect.
func NewLog(logger *slog.Logger, timeout time.Duration) Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &logRunner{logger: logger}
	return newGuarded(effect.KindLogWrite, timeout, r.run)
}

type logRunner struct {
	logger *slog.Logger
}

var slogLevels = map[effect.LogLevel]slog.Level{
	effect.LevelDebug: slog.LevelDebug,
	effect.LevelInfo:  slog.LevelInfo,
	effect.LevelWarn:  slog.LevelWarn,
	effect.LevelError: slog.LevelError,
}

func (r *logRunner) run(ctx context.Context, payload effect.Object) effect.Outcome {
	levelStr, ok := payload.Str("level")
	level := effect.LogLevel(levelStr)
	if !ok || !effect.ValidLogLevels[level] {
		return effect.Failf(effect.CaseInvalid, "log.write has invalid level %q", levelStr)
	}
	message, ok := payload.Str("message")
	if !ok {
		return effect.Fail(effect.CaseInvalid, "log.write payload missing message")
	}
	fields, _ := payload.Obj("fields")

	attrs := make([]slog.Attr, 0, len(fields))
	for _, k := range fields.SortedKeys() {
		attrs = append(attrs, slog.Any(k, fieldToGo(fields[k])))
	}
	r.logger.LogAttrs(ctx, slogLevels[level], message, attrs...)
	return effect.Ok(effect.Object{})
}

// fieldToGo lowers a payload value to a plain Go value for slog.
func fieldToGo(v effect.Value) any {
	switch val := v.(type) {
	case effect.String:
		return string(val)
	case effect.Int:
		return int64(val)
	case effect.Bool:
		return bool(val)
	default:
		b, err := effect.MarshalCanonical(val)
		if err != nil {
			return "<uncanonicalizable>"
		}
		return string(b)
	}
}
