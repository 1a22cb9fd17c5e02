// Package obslog provides the structured logging surface used throughout
// the core: session lifecycle, policy denials, acceptor events.
package obslog

import (
	"github.com/sirupsen/logrus"
)

// Field is a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// F is a convenience constructor for a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger is the structured logging interface every package in the core
// depends on, never on logrus directly.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	With(fields ...Field) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New wraps a *logrus.Logger as a Logger.
func New(base *logrus.Logger) Logger {
	if base == nil {
		base = logrus.New()
	}
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

// NewNop returns a Logger that discards everything, for components that
// weren't given an explicit logger (e.g. in tests).
func NewNop() Logger {
	base := logrus.New()
	base.SetOutput(discard{})
	return New(base)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func fieldsToLogrus(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

func (l *logrusLogger) Debug(msg string, fields ...Field) {
	l.entry.WithFields(fieldsToLogrus(fields)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields ...Field) {
	l.entry.WithFields(fieldsToLogrus(fields)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields ...Field) {
	l.entry.WithFields(fieldsToLogrus(fields)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, err error, fields ...Field) {
	entry := l.entry.WithFields(fieldsToLogrus(fields))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

func (l *logrusLogger) With(fields ...Field) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fieldsToLogrus(fields))}
}
