package config

import "log"

// Level-filtered logging, generalized from the teacher's DEBUG/debugging
// globals (a single on/off switch) to LOG_LEVEL's integer gate: higher
// levels are progressively quieter, so a Logger at level N only emits
// calls made at level >= N.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps the standard log.Logger with a verbosity floor, the way
// the teacher's DEBUG global gated its own log.Printf call sites.
type Logger struct {
	level int
	std   *log.Logger
}

// NewLogger returns a Logger that only prints calls at level >= min.
func NewLogger(min int) *Logger {
	return &Logger{level: min, std: log.Default()}
}

func (l *Logger) log(level int, format string, args []any) {
	if level < l.level {
		return
	}
	l.std.Printf(format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args) }
