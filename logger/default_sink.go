package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
)

type defaultSink struct {
	l       *log.Logger
	sinkLvl Level
}

// NewSink writes messages of lvl and above to l, prefixed with the upper-cased level name.
func NewSink(l *log.Logger, lvl Level) (Sink, error) {
	if !Valid(lvl) {
		return nil, fmt.Errorf("invalid level %d", lvl)
	}
	return &defaultSink{l, lvl}, nil
}

// NewWriterSink is NewSink over a logger writing to w with the given component prefix.
func NewWriterSink(w io.Writer, component string, lvl Level) (Sink, error) {
	prefix := ""
	if component != "" {
		prefix = "[" + component + "] "
	}
	return NewSink(log.New(w, prefix, log.LstdFlags|log.Lmicroseconds), lvl)
}

func (sink *defaultSink) Log(lvl Level, f func() string) {
	if !sink.enabled(lvl) {
		return
	}
	_ = sink.l.Output(2, fmt.Sprintf("%-5s: %s", strings.ToUpper(lvl.String()), f()))
}

func (sink *defaultSink) enabled(lvl Level) bool {
	return sink.l != nil && lvl >= sink.sinkLvl && lvl < OffLevel
}

func (sink *defaultSink) Level() Level {
	return sink.sinkLvl
}
