// Package logging provides the structured logger used by every core
// component, wrapping zap behind a small interface so call sites stay
// terse and do not depend on zap's field constructors directly.
package logging

import "go.uber.org/zap"

type Field struct {
	Key string
	Val any
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Sync() error
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a production-style zap logger. When debug is true it uses
// zap's development config (console encoding, caller info, debug level enabled).
func New(debug bool) (Logger, error) {
	var z *zap.Logger
	var err error
	if debug {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return &zapLogger{z: z}, nil
}

// Noop returns a logger that discards everything, useful in tests.
func Noop() Logger {
	return &zapLogger{z: zap.NewNop()}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, toZap(fields)...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, toZap(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, toZap(fields)...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, toZap(fields)...) }
func (l *zapLogger) Sync() error                       { return l.z.Sync() }

func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Val))
	}
	return out
}
