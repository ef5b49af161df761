package testutil

import (
	"io"
	"log/slog"
)

// DiscardLogger returns a logger that drops everything. Tests inject it
// wherever a *slog.Logger is required but log output is not under test.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
