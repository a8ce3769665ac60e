package logger

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultSink_LevelsFilter(t *testing.T) {
	for loggerLvl := _minLevel; loggerLvl <= _maxLevel; loggerLvl++ {
		buf := bytes.Buffer{}
		sink, _ := NewSink(log.New(&buf, "", log.LstdFlags), loggerLvl)
		testLog := &Logger{sink}
		for curLvl := _minLevel; curLvl < _maxLevel; curLvl++ {
			t.Run(fmt.Sprintf("loggerLevel: %s, curLevel %s", loggerLvl, curLvl), func(t *testing.T) {
				defer func() {
					buf.Reset()
				}()
				testLog.Log(curLvl, func() string {
					return "test"
				})
				require.Equal(t, loggerLvl, testLog.Level())
				contains := strings.Contains(buf.String(), strings.ToUpper(curLvl.String()))
				if curLvl < testLog.Level() {
					require.False(t, contains, fmt.Sprintf("unexpected output %s for level %s", buf.String(), testLog.Level()))
				} else {
					require.True(t, contains, fmt.Sprintf("unexpected output %s for level %s", buf.String(), testLog.Level()))
				}
			})
		}
	}
}

func TestDefaultSink_Basic(t *testing.T) {
	buf := bytes.Buffer{}
	sink, _ := NewSink(log.New(&buf, "", log.LstdFlags), _minLevel)
	testLog := &Logger{sink}

	fixtures := []struct {
		name     string
		run      func(logger *Logger)
		patterns []string
	}{
		{
			"Trace",
			func(logger *Logger) {
				logger.Trace(func() string {
					return "test"
				})
			},
			[]string{strings.ToUpper(TraceLevel.String()), "test"},
		},
		{
			"Debug",
			func(logger *Logger) {
				logger.Debug(func() string {
					return "test"
				})
			},
			[]string{strings.ToUpper(DebugLevel.String()), "test"},
		},
		{
			"Info",
			func(logger *Logger) {
				logger.Info(func() string {
					return "test"
				})
			},
			[]string{strings.ToUpper(InfoLevel.String()), "test"},
		},
		{
			"Infof",
			func(logger *Logger) {
				logger.Infof("%s", "test")
			},
			[]string{strings.ToUpper(InfoLevel.String()), "test"},
		},
		{
			"Warnf",
			func(logger *Logger) {
				logger.Warnf("%s", "test")
			},
			[]string{strings.ToUpper(WarnLevel.String()), "test"},
		},
		{
			"Errorf",
			func(logger *Logger) {
				logger.Errorf("%s", "test")
			},
			[]string{strings.ToUpper(ErrorLevel.String()), "test"},
		},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			defer func() {
				buf.Reset()
			}()
			f.run(testLog)
			for _, pattern := range f.patterns {
				require.True(t, strings.Contains(buf.String(), pattern))
			}
		})
	}
}

func TestDefaultSinkCreationError(t *testing.T) {
	_, err := NewSink(nil, _minLevel-1)
	require.Error(t, err)
	_, err = NewSink(nil, _maxLevel+1)
	require.Error(t, err)
}

func TestDefaultSink_OffLevelMessagesDropped(t *testing.T) {
	buf := bytes.Buffer{}
	sink, _ := NewSink(log.New(&buf, "", 0), TraceLevel)
	sink.Log(OffLevel, func() string {
		return "test"
	})
	require.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	for lvl := _minLevel; lvl <= _maxLevel; lvl++ {
		parsed, err := ParseLevel(strings.ToUpper(lvl.String()))
		require.NoError(t, err)
		require.Equal(t, lvl, parsed)
	}

	var lvl Level
	require.NoError(t, lvl.UnmarshalText([]byte(" warn ")))
	require.Equal(t, WarnLevel, lvl)

	_, err := ParseLevel("verbose")
	require.Error(t, err)
	require.Error(t, lvl.UnmarshalText([]byte("verbose")))
	require.Equal(t, WarnLevel, lvl)
}

func TestNop(t *testing.T) {
	l := Nop()
	require.Equal(t, OffLevel, l.Level())
	called := false
	l.Info(func() string {
		called = true
		return "test"
	})
	require.False(t, called)
}

func TestWriterSink_Prefix(t *testing.T) {
	buf := bytes.Buffer{}
	sink, err := NewWriterSink(&buf, "thin", InfoLevel)
	require.NoError(t, err)
	l := Logger{sink}
	l.Debugf("hidden")
	require.Empty(t, buf.String())
	l.Infof("connected to %s", "node")
	require.True(t, strings.HasPrefix(buf.String(), "[thin] "))
	require.Contains(t, buf.String(), "INFO : connected to node")

	_, err = NewWriterSink(&buf, "", Level(42))
	require.Error(t, err)
}
