// Package log is qsync's structured logging on top of uber-go/zap. A
// single -v=N verbosity selects how much of a sync or build is logged.
package log

import "go.uber.org/zap/zapcore"

// LevelTrace sits below zap's Debug level for per-target detail.
const LevelTrace = zapcore.Level(-2)

// Verbosity levels accepted by -v.
const (
	VerbosityError = 0 // errors only
	VerbosityWarn  = 1 // sync and build warnings
	VerbosityInfo  = 2 // sync summaries, cache updates
	VerbosityDebug = 3 // query sizes, owner lookups, timing
	VerbosityTrace = 4 // per-target and per-artifact detail
)

// verbosityLevels is indexed by verbosity.
var verbosityLevels = [...]zapcore.Level{
	VerbosityError: zapcore.ErrorLevel,
	VerbosityWarn:  zapcore.WarnLevel,
	VerbosityInfo:  zapcore.InfoLevel,
	VerbosityDebug: zapcore.DebugLevel,
	VerbosityTrace: LevelTrace,
}

// VerbosityToLevel maps -v=N to a zap level, clamping N to the known range.
func VerbosityToLevel(v int) zapcore.Level {
	v = min(max(v, VerbosityError), VerbosityTrace)
	return verbosityLevels[v]
}

// LevelToVerbosity is the lowest verbosity at which l is logged.
func LevelToVerbosity(l zapcore.Level) int {
	for v, lvl := range verbosityLevels {
		if l >= lvl {
			return v
		}
	}
	return VerbosityTrace
}

// LevelName names a level, including LevelTrace.
func LevelName(l zapcore.Level) string {
	if l == LevelTrace {
		return "TRACE"
	}
	return l.CapitalString()
}
