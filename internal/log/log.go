// Package log gives every other package the teacher's logging ergonomics —
// `logger.Info("message", "key", value, ...)` — without the teacher's own
// log package, which isn't a fetchable dependency on its own. The key-value
// pairs are collected into a zap.SugaredLogger, colorized for an attached
// terminal the way the teacher colors its CLI output, and each child logger
// made by New carries a "caller" field: a go-stack frame captured once, when
// that child logger is created (not per log line).
package log

import (
	"os"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger mirrors the teacher's log.Logger surface: New(ctx...) returns a
// child logger with those fields attached to every subsequent call.
type Logger struct {
	s *zap.SugaredLogger
}

var root = newRoot()

func newRoot() *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = levelEncoder
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var out zapcore.WriteSyncer
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = zapcore.AddSync(colorable.NewColorableStderr())
	} else {
		out = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), out, zap.DebugLevel)
	return &Logger{s: zap.New(core).Sugar()}
}

func levelEncoder(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var c *color.Color
	switch lvl {
	case zapcore.DebugLevel:
		c = color.New(color.FgHiBlack)
	case zapcore.InfoLevel:
		c = color.New(color.FgGreen)
	case zapcore.WarnLevel:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}
	enc.AppendString(c.Sprint(lvl.CapitalString()))
}

// New returns the root logger with ctx key-value pairs attached, mirroring
// the teacher's `log.New("addr", backend.Address().String())` call sites.
func New(ctx ...interface{}) *Logger {
	return root.New(ctx...)
}

// New returns a child logger with additional persistent fields.
func (l *Logger) New(ctx ...interface{}) *Logger {
	if len(ctx) == 0 {
		return l
	}
	return &Logger{s: l.s.With(append([]interface{}{"caller"}, frame())...).With(ctx...)}
}

func frame() []interface{} {
	call := stack.Caller(2)
	return []interface{}{factFrame(call)}
}

func factFrame(c stack.Call) string {
	return c.String()
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
