// Package logger provides the process-wide structured logger used by every
// component. Adapted from the teacher's internal/logger/logger.go
// (multi-writer slog.TextHandler with a shortened time format).
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Log is the process-wide logger, initialized by Init.
var Log *slog.Logger

func init() {
	// Safe default so packages can log before Init runs (e.g. in tests).
	Log = slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// Init configures the global logger: level name ("debug"/"info"/"warn"/
// "error") and an optional log file path appended alongside stdout.
func Init(level string, logFile string) error {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	writers := []io.Writer{os.Stdout}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	})

	Log = slog.New(handler)
	slog.SetDefault(Log)
	return nil
}

func Debug(msg string, args ...any) { Log.Debug(msg, args...) }
func Info(msg string, args ...any)  { Log.Info(msg, args...) }
func Warn(msg string, args ...any)  { Log.Warn(msg, args...) }
func Error(msg string, args ...any) { Log.Error(msg, args...) }

// With returns a child logger with the given attributes bound, useful for
// per-surface or per-session loggers (e.g. logger.With("surfaceId", id)).
func With(args ...any) *slog.Logger {
	return Log.With(args...)
}
