// Package applog provides the component-prefixed *log.Logger instances used
// throughout the server, writing to stdout and/or an append-only log file
// depending on the --no-console-log / --no-file-log flags.
package applog

import (
	"io"
	"log"
	"os"
	"strings"
)

// Level is an ordinal severity filter.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warning", "warn":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Sink fans log lines out to the configured writers and drops anything
// below the configured level.
type Sink struct {
	level Level
	out   io.Writer
}

// New builds a Sink. consoleOut/fileOut may be nil to disable that writer;
// if both are nil, lines are discarded.
func New(level Level, consoleOut io.Writer, fileOut io.Writer) *Sink {
	var writers []io.Writer
	if consoleOut != nil {
		writers = append(writers, consoleOut)
	}
	if fileOut != nil {
		writers = append(writers, fileOut)
	}
	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}
	return &Sink{level: level, out: out}
}

// OpenFile opens (creating/appending) the log file at path, or returns a nil
// writer and nil error if path is empty.
func OpenFile(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// Logger returns a component-prefixed logger at or above the Sink's level.
// Prefixed loggers below the configured level write to io.Discard.
func (s *Sink) Logger(component string, at Level) *log.Logger {
	out := s.out
	if at < s.level {
		out = io.Discard
	}
	return log.New(out, "["+component+"] ", log.Ldate|log.Ltime|log.Lmicroseconds)
}

func (s *Sink) Info(component string) *log.Logger  { return s.Logger(component, LevelInfo) }
func (s *Sink) Warn(component string) *log.Logger  { return s.Logger(component, LevelWarning) }
func (s *Sink) Error(component string) *log.Logger { return s.Logger(component, LevelError) }
