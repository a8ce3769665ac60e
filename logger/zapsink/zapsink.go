// Package zapsink routes client log output to a zap.Logger.
package zapsink

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yanglinqiang/ignite/logger"
)

type Sink struct {
	l   *zap.Logger
	lvl logger.Level
}

// New wraps l. Zap has no trace level, trace messages are written at debug.
func New(l *zap.Logger, lvl logger.Level) *Sink {
	return &Sink{l: l.WithOptions(zap.AddCallerSkip(2)), lvl: lvl}
}

func (s *Sink) Log(lvl logger.Level, f func() string) {
	if lvl < s.lvl || lvl >= logger.OffLevel {
		return
	}
	zl := toZap(lvl)
	if ce := s.l.Check(zl, ""); ce != nil {
		ce.Message = f()
		ce.Write()
	}
}

func (s *Sink) Level() logger.Level {
	return s.lvl
}

func toZap(lvl logger.Level) zapcore.Level {
	switch lvl {
	case logger.TraceLevel, logger.DebugLevel:
		return zapcore.DebugLevel
	case logger.InfoLevel:
		return zapcore.InfoLevel
	case logger.WarnLevel:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
