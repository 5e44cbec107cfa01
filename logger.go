package pixelsort

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/pixelsort/internal/compute"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for pixelsort and its backends.
// By default, pixelsort produces no log output.
//
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by pixelsort:
//   - [slog.LevelDebug]: buffer sizes, dispatch geometry, pipeline state
//   - [slog.LevelInfo]: adapter selection, completed runs
//   - [slog.LevelWarn]: resources still alive at shutdown
//
// Example:
//
//	pixelsort.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	compute.SetLogger(l)
}

// Logger returns the current logger used by pixelsort.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
