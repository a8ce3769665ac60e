// Package logrussink routes client log output to a logrus entry.
package logrussink

import (
	"github.com/sirupsen/logrus"

	"github.com/yanglinqiang/ignite/logger"
)

type Sink struct {
	e   *logrus.Entry
	lvl logger.Level
}

func New(e *logrus.Entry, lvl logger.Level) *Sink {
	return &Sink{e: e, lvl: lvl}
}

func (s *Sink) Log(lvl logger.Level, f func() string) {
	if lvl < s.lvl || lvl >= logger.OffLevel {
		return
	}
	ll := toLogrus(lvl)
	if !s.e.Logger.IsLevelEnabled(ll) {
		return
	}
	s.e.Log(ll, f())
}

func (s *Sink) Level() logger.Level {
	return s.lvl
}

func toLogrus(lvl logger.Level) logrus.Level {
	switch lvl {
	case logger.TraceLevel:
		return logrus.TraceLevel
	case logger.DebugLevel:
		return logrus.DebugLevel
	case logger.InfoLevel:
		return logrus.InfoLevel
	case logger.WarnLevel:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}
