// Accumulates the problems found during a generation run,
// logs them as they occur and tells whether the run failed.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benoitkugler/svgvariants/logging"
)

// Severity of a diagnostic.
type Severity uint8

const (
	Info Severity = iota
	Warning
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("Severity(%d)", s)
	}
}

func (s Severity) level() slog.Level {
	switch s {
	case Warning:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	case Critical:
		return logging.LevelCritical
	default:
		return slog.LevelInfo
	}
}

// Kind identifies the type of problem.
type Kind string

const (
	SourceDirectoryMissing    Kind = "SourceDirectoryMissing"
	OrderingArtifactMissing   Kind = "OrderingArtifactMissing"
	OrderingArtifactMalformed Kind = "OrderingArtifactMalformed"
	OrderingEntryMissing      Kind = "OrderingEntryMissing"
	OrderingEntryUnlisted     Kind = "OrderingEntryUnlisted"
	OrderingEntryDuplicate    Kind = "OrderingEntryDuplicate"
	SourceNotFound            Kind = "SourceNotFound"
	StructuralParseError      Kind = "StructuralParseError"
	LayerMissingIdentifier    Kind = "LayerMissingIdentifier"
	NestedOptionalLayer       Kind = "NestedOptionalLayer"
	DuplicateIdentifier       Kind = "DuplicateIdentifier"
	SerializationFailure      Kind = "SerializationFailure"
	NoVariations              Kind = "NoVariations"
	ManifestFailure           Kind = "ManifestFailure"
	MetricsFailure            Kind = "MetricsFailure"
	UnexpectedFailure         Kind = "UnexpectedFailure"
	Progress                  Kind = "Progress"
)

// Diagnostic is one reported problem (or progress message).
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	File     string // file context, may be empty
	Message  string
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return fmt.Sprintf("%s [%s]: %s", d.Severity, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Kind, d.File, d.Message)
}

// Collector records diagnostics and logs each of them once.
// It is safe for concurrent use.
type Collector struct {
	logger *slog.Logger

	mu    sync.Mutex
	diags []Diagnostic
}

// NewCollector returns a collector logging to `logger`, which may be nil.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Collector{logger: logger}
}

// Report records and logs a diagnostic.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.mu.Unlock()

	args := []any{"kind", string(d.Kind)}
	if d.File != "" {
		args = append(args, logging.FileKey, d.File)
	}
	c.logger.Log(context.Background(), d.Severity.level(), d.Message, args...)
}

// Reportf is a convenience wrapper around Report.
func (c *Collector) Reportf(kind Kind, severity Severity, file, format string, args ...any) {
	c.Report(Diagnostic{Kind: kind, Severity: severity, File: file, Message: fmt.Sprintf(format, args...)})
}

// Infof records a progress message.
func (c *Collector) Infof(file, format string, args ...any) {
	c.Reportf(Progress, Info, file, format, args...)
}

func (c *Collector) Warnf(kind Kind, file, format string, args ...any) {
	c.Reportf(kind, Warning, file, format, args...)
}

func (c *Collector) Errorf(kind Kind, file, format string, args ...any) {
	c.Reportf(kind, Error, file, format, args...)
}

// Diagnostics returns a copy of the recorded diagnostics, in report order.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.diags...)
}

// Count returns the number of diagnostics with the given severity.
func (c *Collector) Count(s Severity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.diags {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// Failed returns true if at least one error (or critical)
// diagnostic has been reported.
func (c *Collector) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.diags {
		if d.Severity >= Error {
			return true
		}
	}
	return false
}
