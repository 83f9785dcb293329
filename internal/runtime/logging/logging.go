package logging

import (
	"log/slog"
)

// LogFields represents structured logging key/value pairs used by busrpc.
type LogFields map[string]any

// ServiceLogger is the minimal logging contract required by callers and
// workers. Applications can adapt their existing loggers without depending
// on slog.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
}

// NewSlogServiceLogger wraps a slog.Logger so it satisfies the ServiceLogger
// interface.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("busrpc: slog logger cannot be nil")
	}
	return &slogServiceLogger{inner: log}
}

// NewNopServiceLogger returns a logger that discards everything. Useful as a
// default and in tests.
func NewNopServiceLogger() ServiceLogger {
	return nopServiceLogger{}
}

type slogServiceLogger struct {
	inner *slog.Logger
}

func (s *slogServiceLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return s
	}
	return &slogServiceLogger{inner: s.inner.With(toAttrs(fields)...)}
}

func (s *slogServiceLogger) Debug(msg string, fields LogFields) {
	s.inner.Debug(msg, toAttrs(fields)...)
}

func (s *slogServiceLogger) Info(msg string, fields LogFields) {
	s.inner.Info(msg, toAttrs(fields)...)
}

func (s *slogServiceLogger) Error(msg string, err error, fields LogFields) {
	attrs := toAttrs(fields)
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	s.inner.Error(msg, attrs...)
}

func toAttrs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]any, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

type nopServiceLogger struct{}

func (nopServiceLogger) With(LogFields) ServiceLogger   { return nopServiceLogger{} }
func (nopServiceLogger) Debug(string, LogFields)        {}
func (nopServiceLogger) Info(string, LogFields)         {}
func (nopServiceLogger) Error(string, error, LogFields) {}
