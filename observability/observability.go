// Package observability provides the pluggable logging and tracing hooks
// used throughout the scan pipeline. Host applications inject their own
// implementations; the defaults are no-ops so the library stays silent when
// embedded without configuration.
package observability

import (
	"context"
	"time"
)

// Logger is the minimal structured logging contract the pipeline emits to.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is a single structured log attribute.
type Field interface {
	Key() string
	Value() interface{}
}

type field struct {
	key string
	val interface{}
}

func (f field) Key() string        { return f.key }
func (f field) Value() interface{} { return f.val }

func String(key, value string) Field            { return field{key, value} }
func Int(key string, value int) Field           { return field{key, value} }
func Int64(key string, value int64) Field       { return field{key, value} }
func Float64(key string, value float64) Field   { return field{key, value} }
func Bool(key string, value bool) Field         { return field{key, value} }
func Duration(key string, d time.Duration) Field { return field{key, d} }
func Error(key string, err error) Field         { return field{key, err} }

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// OrNop returns log, or a NopLogger when log is nil, so call sites never
// need a nil check.
func OrNop(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}

// Tracer provides tracing hooks around the pipeline's suspension points
// (chip command round-trips, OCR engine runs).
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents one traced operation.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// Standard metric names emitted by the library.
const (
	MetricSessionDuration = "scan.session.duration"
	MetricChipCommands    = "scan.chip.commands"
	MetricChipBytesRead   = "scan.chip.bytes_read"
	MetricTLVEntries      = "scan.tlv.entries"
	MetricOCRDuration     = "scan.ocr.duration"
	MetricOCRLineCount    = "scan.ocr.lines"
	MetricMergeCollapsed  = "scan.ocr.merge_collapsed"
)
