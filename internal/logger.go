package internal

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds the process logger. Production emits JSON with RFC3339Nano
// timestamps so log shippers can parse it; everything else gets text.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	switch env {
	case "prod":
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		}
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With(slog.String("service", "emporium"))
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(level string) *slog.LevelVar {
	l := new(slog.LevelVar)
	switch level {
	case "debug":
		l.Set(slog.LevelDebug)
	case "info", "":
	case "warn":
		l.Set(slog.LevelWarn)
	case "error":
		l.Set(slog.LevelError)
	default:
		slog.Default().Warn("Invalid log level. Using default level: info", slog.String("value", level))
	}
	return l
}
