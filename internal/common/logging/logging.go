package logging

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// New creates a timestamped logger writing to w at the given level name.
// Unknown level names fall back to info.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           lvl,
	})
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

type ctxKey int

const loggerKey ctxKey = 0

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger attached to ctx, or log.Default().
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
