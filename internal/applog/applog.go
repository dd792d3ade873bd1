// Package applog provides the process-wide structured logger. It replaces
// the teacher's logToFile/fmt.Printf debug prints (internal/bridge/app.go)
// and the original Java's Log.d(TAG, ...) tracing with a single
// log/slog.Logger, the closest standard-library equivalent to a framework
// logger that the retrieved corpus never actually imports one of.
package applog

import (
	"io"
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Logger returns the process-wide logger. moovfix and remux route their
// container-walk and copy-plan tracing through it.
func Logger() *slog.Logger { return logger }

// Configure replaces the process-wide logger with one writing to w at the
// given level. Passing a nil w leaves output on os.Stderr. main.go calls
// this when -verbose is set, which is what makes the moovfix/remux DEBUG
// tracing reachable.
func Configure(w io.Writer, level slog.Level) {
	if w == nil {
		w = os.Stderr
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
