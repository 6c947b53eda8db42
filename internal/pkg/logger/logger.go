// internal/pkg/logger/logger.go
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Options configures the process logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	// Output is stdout, stderr or file:<path>.
	Output string
	// File receives a JSON copy of every record, for log shipping.
	File      string
	AddSource bool

	Service string
	Version string
	Env     string
}

// Logger is the process logger. Components take the embedded *slog.Logger.
type Logger struct {
	*slog.Logger
}

// SetupLogger builds the process logger and installs it as the slog
// default. Service labels and LOG_FILE come from the environment.
func SetupLogger(level string, format string) *Logger {
	l := New(Options{
		Level:     level,
		Format:    format,
		Output:    "stdout",
		File:      os.Getenv("LOG_FILE"),
		AddSource: true,
		Service:   os.Getenv("SERVICE_NAME"),
		Version:   os.Getenv("SERVICE_VERSION"),
		Env:       os.Getenv("APP_ENV"),
	})
	slog.SetDefault(l.Logger)
	return l
}

// New builds a logger. Every record is enriched from its context (request,
// job, tenant) and scrubbed of credentials before reaching any output.
func New(opts Options) *Logger {
	level := parseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   opts.AddSource,
		ReplaceAttr: replaceAttr(opts.Format),
	}

	w := openOutput(opts.Output)
	var h slog.Handler
	if opts.Format == "text" {
		h = NewConsoleHandler(w, handlerOpts)
	} else {
		h = slog.NewJSONHandler(w, handlerOpts)
	}

	if opts.File != "" {
		if f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			h = NewFanoutHandler(h, slog.NewJSONHandler(f, &slog.HandlerOptions{
				Level:       level,
				AddSource:   true,
				ReplaceAttr: replaceAttr("json"),
			}))
		}
	}

	h = NewSanitizationHandler(NewContextHandler(h))

	var labels []slog.Attr
	if opts.Service != "" {
		labels = append(labels, slog.String("service", opts.Service))
	}
	if opts.Version != "" {
		labels = append(labels, slog.String("version", opts.Version))
	}
	if opts.Env != "" {
		labels = append(labels, slog.String("env", opts.Env))
	}
	if len(labels) > 0 {
		h = h.WithAttrs(labels)
	}

	return &Logger{Logger: slog.New(h)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutput(output string) io.Writer {
	switch {
	case output == "stderr":
		return os.Stderr
	case strings.HasPrefix(output, "file:"):
		f, err := os.OpenFile(strings.TrimPrefix(output, "file:"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}

// replaceAttr shapes JSON records for the log aggregator: RFC3339Nano
// timestamps, "severity" instead of "level", and *_ms durations as numbers.
func replaceAttr(format string) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		switch {
		case a.Key == slog.TimeKey:
			if t, ok := a.Value.Any().(time.Time); ok {
				a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
			}
		case a.Key == slog.LevelKey && format != "text":
			a.Key = "severity"
		case strings.HasSuffix(a.Key, "_ms"):
			if d, ok := a.Value.Any().(time.Duration); ok {
				a.Value = slog.Float64Value(float64(d.Microseconds()) / 1000)
			}
		}
		return a
	}
}
