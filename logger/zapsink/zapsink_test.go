package zapsink

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanglinqiang/ignite/logger"
)

func TestSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &logger.Logger{Sink: New(zap.New(core), logger.DebugLevel)}

	l.Trace(func() string { return "dropped" })
	l.Debugf("cache %s", "a")
	l.Infof("cache %s", "b")
	l.Warnf("cache %s", "c")
	l.Errorf("cache %s", "d")

	entries := logs.All()
	require.Len(t, entries, 4)
	require.Equal(t, "cache a", entries[0].Message)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, zapcore.InfoLevel, entries[1].Level)
	require.Equal(t, zapcore.WarnLevel, entries[2].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	require.Equal(t, logger.DebugLevel, l.Level())
}

func TestSinkRespectsCoreLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := &logger.Logger{Sink: New(zap.New(core), logger.TraceLevel)}
	evaluated := false
	l.Info(func() string {
		evaluated = true
		return "info"
	})
	require.False(t, evaluated)
	require.Zero(t, logs.Len())
}
