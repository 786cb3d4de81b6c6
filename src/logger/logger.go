package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is the minimum severity a Logger prints.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarning,
	"warning": LevelWarning,
	"error":   LevelError,
}

// Shared by every named logger so that one config value drives the process
var currentLevel int32 = int32(LevelInfo)

var output io.Writer = os.Stdout

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger *log.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance.
// config may be anything exposing the log level (see levelFrom).
func NewLogger(config interface{}, name string) *Logger {
	if lvl, ok := levelFrom(config); ok {
		SetLevel(lvl)
	}
	return &Logger{
		name:   name,
		logger: log.New(output, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// -----------------------------------------------------------------------------

// SetLevel parses a level name; unknown names are ignored.
func SetLevel(s string) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return
	}
	atomic.StoreInt32(&currentLevel, int32(l))
}

// -----------------------------------------------------------------------------

// SetOutput redirects loggers created afterwards (tests use io.Discard).
func SetOutput(w io.Writer) {
	output = w
}

func enabled(l Level) bool {
	return Level(atomic.LoadInt32(&currentLevel)) <= l
}

// -----------------------------------------------------------------------------

func levelFrom(config interface{}) (string, bool) {
	switch c := config.(type) {
	case string:
		return c, c != ""
	case interface{ GetLogLevel() string }:
		lvl := c.GetLogLevel()
		return lvl, lvl != ""
	}
	return "", false
}

// -----------------------------------------------------------------------------

// Debug logs verbose diagnostics
func (l *Logger) Debug(format string, args ...interface{}) {
	if !enabled(LevelDebug) {
		return
	}
	l.logger.Printf("[%s] DEBUG: %s", l.name, fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	if !enabled(LevelWarning) {
		return
	}
	l.logger.Printf("[%s] WARNING: %s", l.name, fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	l.logger.Printf("[%s] INFO: %s", l.name, fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Printf("[%s] ERROR: %s", l.name, fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.Printf("[%s] CRITICAL: %s", l.name, fmt.Sprintf(format, args...))
	os.Exit(1)
}
