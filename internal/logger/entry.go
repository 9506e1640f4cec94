package logger

import (
	"context"
	"time"
)

// Entry accumulates metric fields for one aggregatable log line, such as
// request latency or how many chunks an ingest wrote. Tracing fields
// travel in the context; metric fields travel on the Entry.
type Entry struct {
	logger *Logger
	fields Fields
}

// With starts an Entry on the default logger.
// Example: logger.With(logger.Fields{logger.FieldCount: 42}).Info(ctx, "Chunks stored")
func With(fields Fields) *Entry {
	return &Entry{
		logger: getDefaultLogger(),
		fields: fields,
	}
}

// With returns a copy of the Entry with the extra fields merged in.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{
		logger: e.logger,
		fields: merged,
	}
}

// WithField adds a single field to the Entry.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.With(Fields{key: value})
}

// WithDuration records elapsed time as duration_ms.
func (e *Entry) WithDuration(d time.Duration) *Entry {
	return e.WithField(FieldDurationMs, d.Milliseconds())
}

// WithCount records how many items an operation touched (chunks written,
// vectors indexed, results returned).
func (e *Entry) WithCount(count int) *Entry {
	return e.WithField(FieldCount, count)
}

// WithRequestStatus records the HTTP status code of a served request.
func (e *Entry) WithRequestStatus(code int) *Entry {
	return e.WithField(FieldStatus, code)
}

// WithPayloadSize records a payload size in bytes.
func (e *Entry) WithPayloadSize(bytes int) *Entry {
	return e.WithField(FieldSize, bytes)
}

// resolve picks the request-scoped logger when a context is given,
// otherwise the logger the Entry was started on.
func (e *Entry) resolve(ctx context.Context) *Logger {
	if ctx != nil {
		return FromContext(ctx)
	}
	return e.logger
}

// Debug logs at Debug level with the accumulated metric fields.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.resolve(ctx).WithFields(e.fields).Debugf(format, args...)
}

// Info logs at Info level with the accumulated metric fields.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.resolve(ctx).WithFields(e.fields).Infof(format, args...)
}

// Warn logs at Warn level with the accumulated metric fields.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.resolve(ctx).WithFields(e.fields).Warnf(format, args...)
}

// Error logs at Error level with the accumulated metric fields.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.resolve(ctx).WithFields(e.fields).Errorf(format, args...)
}

// Fatal logs at Fatal level with the accumulated metric fields and exits.
func (e *Entry) Fatal(ctx context.Context, format string, args ...interface{}) {
	e.resolve(ctx).WithFields(e.fields).Fatalf(format, args...)
}
