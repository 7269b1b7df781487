// Builds the slog loggers used by the command line tool,
// and passes them through context.Context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LevelCritical is used for failures aborting a whole run.
const LevelCritical = slog.LevelError + 4

// Supported output formats.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatGitHub = "github"
)

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn' or 'error'", s)
	}
}

// New creates and configures a new slog.Logger instance, without
// setting the global logger.
func New(levelStr, formatStr string, outW io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel}

	var handler slog.Handler
	switch strings.ToLower(formatStr) {
	case FormatText, "":
		handler = slog.NewTextHandler(outW, handlerOpts)
	case FormatJSON:
		handler = slog.NewJSONHandler(outW, handlerOpts)
	case FormatGitHub:
		handler = NewGitHubHandler(outW, level)
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text', 'json' or 'github'", formatStr)
	}
	return slog.New(handler), nil
}

// replaceLevel names the critical level.
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelCritical {
			a.Value = slog.StringValue("CRITICAL")
		}
	}
	return a
}

// Discard returns a logger dropping every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelCritical + 1}))
}

type key struct{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, key{}, logger)
}

// FromContext extracts the logger from a context, defaulting
// to the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(key{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
