// Package log provides the leveled logging interface shared by voxmap
// components.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Level represents the logging level.
type Level int

const (
	// LevelDebug level for detailed troubleshooting information.
	LevelDebug Level = iota
	// LevelInfo level for general operational information.
	LevelInfo
	// LevelWarn level for potentially harmful situations.
	LevelWarn
	// LevelError level for error events that still allow the process to
	// continue.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", l)
	}
}

// Logger defines the methods for logging at different levels.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, args ...interface{})
	// Info logs an info-level message.
	Info(msg string, args ...interface{})
	// Warn logs a warning-level message.
	Warn(msg string, args ...interface{})
	// Error logs an error-level message.
	Error(msg string, args ...interface{})
	// WithField returns a new logger with the given field added to the context.
	WithField(key string, value interface{}) Logger
	// GetLevel returns the current logging level.
	GetLevel() Level
	// SetLevel sets the logging level.
	SetLevel(level Level)
}

// TextLogger implements Logger with a plain-text line format.
type TextLogger struct {
	mu     sync.Mutex
	level  Level
	out    io.Writer
	fields map[string]interface{}
}

// Option configures a TextLogger.
type Option func(*TextLogger)

// WithLevel sets the logging level.
func WithLevel(level Level) Option {
	return func(l *TextLogger) {
		l.level = level
	}
}

// WithOutput sets the output writer.
func WithOutput(out io.Writer) Option {
	return func(l *TextLogger) {
		l.out = out
	}
}

// NewTextLogger creates a new TextLogger with the given options.
func NewTextLogger(options ...Option) *TextLogger {
	logger := &TextLogger{
		level:  LevelInfo,
		out:    os.Stdout,
		fields: make(map[string]interface{}),
	}
	for _, option := range options {
		option(logger)
	}
	return logger
}

func (l *TextLogger) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	// Fields print in sorted key order so lines are stable.
	fieldsStr := ""
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fieldsStr += fmt.Sprintf(" %s=%v", k, l.fields[k])
		}
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(l.out, "[%s] [%s]%s %s\n", timestamp, level.String(), fieldsStr, msg)
}

// Debug logs a debug-level message.
func (l *TextLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info-level message.
func (l *TextLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning-level message.
func (l *TextLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error-level message.
func (l *TextLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// WithField returns a new logger with the given field added to the context.
func (l *TextLogger) WithField(key string, value interface{}) Logger {
	newLogger := &TextLogger{
		level:  l.level,
		out:    l.out,
		fields: make(map[string]interface{}, len(l.fields)+1),
	}
	for k, v := range l.fields {
		newLogger.fields[k] = v
	}
	newLogger.fields[key] = value
	return newLogger
}

// GetLevel returns the current logging level.
func (l *TextLogger) GetLevel() Level {
	return l.level
}

// SetLevel sets the logging level.
func (l *TextLogger) SetLevel(level Level) {
	l.level = level
}

// Default logger instance.
var defaultLogger Logger = NewTextLogger()

// SetDefault sets the default logger instance.
func SetDefault(logger Logger) {
	defaultLogger = logger
}

// Default returns the default logger instance.
func Default() Logger {
	return defaultLogger
}
