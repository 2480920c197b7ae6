package logger

import (
	"context"
	"time"
)

// Entry is a single log line with metric fields. The tracing fields come
// from the context logger at the time the line is written.
//
//	logger.With(logger.Fields{logger.FieldDocument: "memes"}).
//		WithDuration(elapsed).
//		Debug(ctx, "Document saved")
type Entry struct {
	fields Fields
}

// With starts an Entry with fields.
func With(fields Fields) *Entry {
	e := &Entry{fields: make(Fields, len(fields)+2)}
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

func (e *Entry) set(key string, value interface{}) *Entry {
	e.fields[key] = value
	return e
}

// WithDuration records d in whole milliseconds.
func (e *Entry) WithDuration(d time.Duration) *Entry {
	return e.set(FieldDurationMs, d.Milliseconds())
}

// WithCount records a count, such as the votes on a meme.
func (e *Entry) WithCount(n int) *Entry {
	return e.set(FieldCount, n)
}

// WithSize records a size in bytes.
func (e *Entry) WithSize(n int64) *Entry {
	return e.set(FieldSize, n)
}

// WithStatus records an HTTP status code.
func (e *Entry) WithStatus(code int) *Entry {
	return e.set(FieldStatus, code)
}

// Debug writes the entry at debug level through the context logger.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Debugf(format, args...)
}

// Info writes the entry at info level through the context logger.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Infof(format, args...)
}
