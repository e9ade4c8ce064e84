// Package logging sets up log/slog JSON handlers for the daemon and the
// executor, generalizing the teacher's cmd/sand/main.go::initSlog to the
// daemon/executor split: the daemon logs to a rotated file via
// lumberjack, the executor logs to its own per-container stderr.log
// (already written directly by executor/bootstrap.go's step 2).
package logging

import (
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DaemonOptions configures the daemon's rotated JSON log.
type DaemonOptions struct {
	// Path is the log file; lumberjack rotates it in place.
	Path string
	// Level is one of debug, info, warn, error; unrecognized values fall
	// back to info, matching the teacher's initSlog.
	Level string
	// MaxSizeMB is the size in megabytes a log file grows to before
	// rotation.
	MaxSizeMB int
	// MaxBackups is how many rotated files are kept.
	MaxBackups int
	// MaxAgeDays is how long a rotated file is kept.
	MaxAgeDays int
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewDaemonLogger builds a JSON slog.Logger writing through a rotating
// lumberjack.Logger. It does not call slog.SetDefault — callers decide
// whether this is the process-wide default or a scoped logger.
func NewDaemonLogger(opts DaemonOptions) *slog.Logger {
	maxSize := opts.MaxSizeMB
	if maxSize == 0 {
		maxSize = 50
	}
	maxBackups := opts.MaxBackups
	if maxBackups == 0 {
		maxBackups = 5
	}
	maxAge := opts.MaxAgeDays
	if maxAge == 0 {
		maxAge = 28
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{
		Level: parseLevel(strings.ToLower(opts.Level)),
	})
	return slog.New(handler)
}
