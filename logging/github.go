package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// FileKey is the attribute used as file context in annotations.
const FileKey = "file"

// GitHubHandler writes records as GitHub Actions workflow commands,
// so that warnings and errors are shown as annotations:
//
//	::error file=sign.svg::invalid document sign.svg: ...
type GitHubHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewGitHubHandler returns a handler writing records of at least `level` to `w`.
func NewGitHubHandler(w io.Writer, level slog.Leveler) *GitHubHandler {
	return &GitHubHandler{mu: new(sync.Mutex), w: w, level: level}
}

func (h *GitHubHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func command(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warning"
	case level >= slog.LevelInfo:
		return "notice"
	default:
		return "debug"
	}
}

// escapeData follows the workflow command escaping rules.
var escapeData = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")

var escapeProperty = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")

func (h *GitHubHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}

func (h *GitHubHandler) Handle(_ context.Context, r slog.Record) error {
	var (
		file  string
		extra strings.Builder
	)
	add := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		switch {
		case a.Equal(slog.Attr{}):
		case a.Key == FileKey:
			file = a.Value.String()
		default:
			fmt.Fprintf(&extra, " %s=%v", a.Key, a.Value)
		}
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.qualify(a))
		return true
	})

	var b strings.Builder
	b.WriteString("::")
	b.WriteString(command(r.Level))
	if file != "" {
		b.WriteString(" file=")
		b.WriteString(escapeProperty.Replace(file))
	}
	b.WriteString("::")
	if r.Level >= LevelCritical {
		b.WriteString("CRITICAL: ")
	}
	b.WriteString(escapeData.Replace(r.Message + extra.String()))
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *GitHubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		out.attrs = append(out.attrs, h.qualify(a))
	}
	return &out
}

func (h *GitHubHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	if out.group != "" {
		name = out.group + "." + name
	}
	out.group = name
	return &out
}
