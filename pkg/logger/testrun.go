package logger

import (
	"io"
	"log/slog"
)

// NewTestHandler returns a handler that swallows all output, for tests.
func NewTestHandler(_ slog.Level) slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}
