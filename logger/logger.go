package logger

import (
	"fmt"
	"strings"
)

type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	OffLevel

	_minLevel = TraceLevel
	_maxLevel = OffLevel
)

func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case OffLevel:
		return "off"
	default:
		return "unknown"
	}
}

// ParseLevel accepts the names returned by Level.String, case-insensitive.
func ParseLevel(s string) (Level, error) {
	for lvl := _minLevel; lvl <= _maxLevel; lvl++ {
		if strings.EqualFold(strings.TrimSpace(s), lvl.String()) {
			return lvl, nil
		}
	}
	return OffLevel, fmt.Errorf("unknown log level %q", s)
}

// UnmarshalText lets a Level be filled from env and ini configuration.
func (l *Level) UnmarshalText(text []byte) error {
	lvl, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}

func Valid(lvl Level) bool {
	return lvl >= _minLevel && lvl <= _maxLevel
}

type Sink interface {
	Log(lvl Level, f func() string)
	Level() Level
}

type Logger struct {
	Sink
}

type nopSink struct{}

func (nopSink) Log(Level, func() string) {}

func (nopSink) Level() Level {
	return OffLevel
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{nopSink{}}
}

func (l Logger) Trace(f func() string) {
	l.Log(TraceLevel, f)
}

func (l Logger) Tracef(format string, values ...interface{}) {
	l.Log(TraceLevel, func() string {
		return fmt.Sprintf(format, values...)
	})
}

func (l Logger) Debug(f func() string) {
	l.Log(DebugLevel, f)
}

func (l Logger) Debugf(format string, values ...interface{}) {
	l.Log(DebugLevel, func() string {
		return fmt.Sprintf(format, values...)
	})
}

func (l Logger) Info(f func() string) {
	l.Log(InfoLevel, f)
}

func (l Logger) Infof(format string, values ...interface{}) {
	l.Log(InfoLevel, func() string {
		return fmt.Sprintf(format, values...)
	})
}

func (l Logger) Warnf(format string, values ...interface{}) {
	l.Log(WarnLevel, func() string {
		return fmt.Sprintf(format, values...)
	})
}

func (l Logger) Errorf(format string, values ...interface{}) {
	l.Log(ErrorLevel, func() string {
		return fmt.Errorf(format, values...).Error()
	})
}
