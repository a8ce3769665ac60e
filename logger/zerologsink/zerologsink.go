// Package zerologsink routes client log output to a zerolog.Logger.
package zerologsink

import (
	"github.com/rs/zerolog"

	"github.com/yanglinqiang/ignite/logger"
)

type Sink struct {
	l   zerolog.Logger
	lvl logger.Level
}

func New(l zerolog.Logger, lvl logger.Level) *Sink {
	return &Sink{l: l, lvl: lvl}
}

func (s *Sink) Log(lvl logger.Level, f func() string) {
	if lvl < s.lvl || lvl >= logger.OffLevel {
		return
	}
	if e := s.l.WithLevel(toZerolog(lvl)); e != nil {
		e.Msg(f())
	}
}

func (s *Sink) Level() logger.Level {
	return s.lvl
}

func toZerolog(lvl logger.Level) zerolog.Level {
	switch lvl {
	case logger.TraceLevel:
		return zerolog.TraceLevel
	case logger.DebugLevel:
		return zerolog.DebugLevel
	case logger.InfoLevel:
		return zerolog.InfoLevel
	case logger.WarnLevel:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
