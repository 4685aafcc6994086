package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

var levelNames = map[LogLevel]string{
	LogLevelNone:    "none",
	LogLevelError:   "error",
	LogLevelWarning: "warn",
	LogLevelInfo:    "info",
	LogLevelDebug:   "debug",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLogLevel accepts either a level name ("warn") or its number ("2").
func ParseLogLevel(s string) (LogLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for level, name := range levelNames {
		if s == name || s == fmt.Sprint(int(level)) {
			return level, nil
		}
	}
	if s == "warning" {
		return LogLevelWarning, nil
	}
	return LogLevelNone, fmt.Errorf("unknown log level %q", s)
}

type Logger struct {
	logger *log.Logger
	level  LogLevel
	tag    string
}

// NewLogger wraps a standard logger. A nil logger discards all output.
func NewLogger(logger *log.Logger, level LogLevel) *Logger {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Logger{
		logger: logger,
		level:  level,
	}
}

// Discard returns a logger that drops everything, for tests and defaults.
func Discard() *Logger {
	return NewLogger(nil, LogLevelNone)
}

// WithTag creates a new logger with a tag prefix
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{
		logger: l.logger,
		level:  l.level,
		tag:    tag,
	}
}

func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) formatMessage(level string, format string) string {
	var b strings.Builder
	if l.tag != "" {
		b.WriteString("[" + l.tag + "] ")
	}
	if level != "" {
		b.WriteString(level + " ")
	}
	b.WriteString(format)
	return b.String()
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.logger.Printf(l.formatMessage("DEBUG:", format), v...)
	}
}

func (l *Logger) Infof(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.logger.Printf(l.formatMessage("", format), v...)
	}
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.level >= LogLevelWarning {
		l.logger.Printf(l.formatMessage("WARN:", format), v...)
	}
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.logger.Printf(l.formatMessage("ERROR:", format), v...)
	}
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf(l.formatMessage("FATAL:", format), v...)
}
