package log

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	logger    atomic.Pointer[zap.SugaredLogger]
	level     = zap.NewAtomicLevelAt(VerbosityToLevel(VerbosityWarn))
	verbosity atomic.Int32
)

func init() {
	// Warnings only until Init is called.
	verbosity.Store(VerbosityWarn)
	setOutput(os.Stderr, "text")
}

// Init initializes the global logger (call once at startup).
func Init(v int, format string) {
	InitWithOutput(v, format, os.Stderr)
}

// InitWithOutput initializes the global logger writing to w.
// The daemon uses this to log into its log file.
func InitWithOutput(v int, format string, w io.Writer) {
	SetVerbosity(v)
	setOutput(w, format)
}

func setOutput(w io.Writer, format string) {
	core := NewCore(CoreOptions{Level: level, Format: format, Output: w})
	logger.Store(zap.New(core).Sugar())
}

// SetVerbosity changes verbosity at runtime.
func SetVerbosity(v int) {
	verbosity.Store(int32(v))
	level.SetLevel(VerbosityToLevel(v))
}

// Verbosity returns the current verbosity level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Logger returns the current logger instance.
func Logger() *zap.SugaredLogger {
	return logger.Load()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = logger.Load().Sync()
}

// Error logs at error level (v=0).
func Error(msg string, args ...any) {
	logger.Load().Errorw(msg, args...)
}

// Warn logs at warn level (v=1).
func Warn(msg string, args ...any) {
	logger.Load().Warnw(msg, args...)
}

// Info logs at info level (v=2).
func Info(msg string, args ...any) {
	logger.Load().Infow(msg, args...)
}

// Debug logs at debug level (v=3).
func Debug(msg string, args ...any) {
	logger.Load().Debugw(msg, args...)
}

// Trace logs at trace level (v=4).
func Trace(msg string, args ...any) {
	l := logger.Load().Desugar()
	if ce := l.Check(LevelTrace, msg); ce != nil {
		ce.Write(fields(args)...)
	}
}

// fields converts alternating key/value pairs into zap fields.
func fields(args []any) []zap.Field {
	out := make([]zap.Field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		out = append(out, zap.Any(fmt.Sprint(args[i]), args[i+1]))
	}
	if len(args)%2 == 1 {
		out = append(out, zap.Any("!BADKEY", args[len(args)-1]))
	}
	return out
}

// V returns a logger that only logs if verbosity >= level.
// Usage: log.V(3).Infow("detailed", "key", value)
func V(v int) *zap.SugaredLogger {
	if int(verbosity.Load()) >= v {
		return logger.Load()
	}
	return zap.NewNop().Sugar()
}

// With returns a logger with additional context.
func With(args ...any) *zap.SugaredLogger {
	return logger.Load().With(args...)
}

// Component returns a logger tagged with component name.
func Component(name string) *zap.SugaredLogger {
	return logger.Load().With("component", name)
}
