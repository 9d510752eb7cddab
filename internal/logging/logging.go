// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the structured logger shared by the scheduler
// and every executor.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logging contract used throughout sitegraph.
// It mirrors the field-based API every executor and the scheduler depend
// on; WithFields returns a derived logger scoped to a node or action so
// call sites don't have to repeat context on every call.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
}

// Field is a single structured key-value pair.
type Field struct {
	Key   string
	Value interface{}
}

// F constructs a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

type zlogger struct {
	log zerolog.Logger
}

// New creates a Logger writing to out (NewDefault, which writes to
// stderr, is the usual call site). zerolog's own internal write is what gives us
// "a shared lock serializes multi-line log writes": every event is
// written as a single line through one underlying writer.
func New(out io.Writer, verbose bool) Logger {
	lvl := zerolog.InfoLevel
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	base := zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	return &zlogger{log: base}
}

// NewDefault creates a Logger writing to stderr, the default for CLI use.
func NewDefault(verbose bool) Logger {
	return New(os.Stderr, verbose)
}

func apply(ev *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	return ev
}

func (l *zlogger) Debug(msg string, fields ...Field) {
	apply(l.log.Debug(), fields).Msg(msg)
}

func (l *zlogger) Info(msg string, fields ...Field) {
	apply(l.log.Info(), fields).Msg(msg)
}

func (l *zlogger) Warn(msg string, fields ...Field) {
	apply(l.log.Warn(), fields).Msg(msg)
}

func (l *zlogger) Error(msg string, err error, fields ...Field) {
	ev := l.log.Error()
	if err != nil {
		ev = ev.Err(err)
	}
	apply(ev, fields).Msg(msg)
}

func (l *zlogger) WithFields(fields ...Field) Logger {
	ctx := l.log.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &zlogger{log: ctx.Logger()}
}
