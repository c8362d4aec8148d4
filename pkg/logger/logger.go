// Package logger builds the process-wide *slog.Logger and provides the
// attribute helpers shared by commands, jobs and adapters.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format selects the handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseLevel parses a level name. Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     slog.Level
	Format    Format
	AddSource bool

	// Service and Version are attached to every record when set.
	Service string
	Version string
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  slog.LevelInfo,
		Format: FormatJSON,
	}
}

// New creates a logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}

	var h slog.Handler
	if Format(strings.ToLower(string(opts.Format))) == FormatText {
		h = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		h = slog.NewJSONHandler(opts.Output, handlerOpts)
	}

	l := slog.New(h)
	if opts.Service != "" {
		l = l.With(slog.String("service", opts.Service))
	}
	if opts.Version != "" {
		l = l.With(slog.String("version", opts.Version))
	}
	return l
}

// FromConfig builds a logger from LOG_LEVEL/LOG_FORMAT style strings.
func FromConfig(level, format string) *slog.Logger {
	opts := DefaultOptions()
	opts.Level = ParseLevel(level)
	opts.Format = Format(format)
	return New(opts)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// Err creates an error attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Economy logging helpers.
func AccountID(id string) slog.Attr     { return slog.String("account_id", id) }
func AchievementID(id string) slog.Attr { return slog.String("achievement_id", id) }
func Currency(code string) slog.Attr    { return slog.String("currency", code) }
func Amount(v int64) slog.Attr          { return slog.Int64("amount", v) }
func Component(name string) slog.Attr   { return slog.String("component", name) }
func Operation(name string) slog.Attr   { return slog.String("operation", name) }
func Latency(d time.Duration) slog.Attr { return slog.Duration("latency", d) }
func Job(name string) slog.Attr         { return slog.String("job", name) }
func RequestID(id string) slog.Attr     { return slog.String("request_id", id) }
