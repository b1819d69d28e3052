// Package logging provides structured logging for the fund ledger services.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"
)

// LogLevel orders message severities. Messages below the logger's level
// are dropped.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "info"
	}
}

// LogFormat selects the output encoding.
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Logger writes structured log lines. With* methods return derived
// loggers; a Logger is never mutated after creation, so sharing one
// across goroutines is safe.
type Logger struct {
	level  LogLevel
	format LogFormat
	out    io.Writer
	fields map[string]interface{}
}

// NewLogger creates a logger writing to stdout.
func NewLogger(level LogLevel, format LogFormat) *Logger {
	return &Logger{level: level, format: format, out: os.Stdout}
}

// SetOutput redirects the logger, used by tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.out = w
}

// WithField returns a derived logger carrying one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a derived logger carrying the extra fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, format: l.format, out: l.out, fields: merged}
}

// WithError returns a derived logger carrying the error text.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(msg string) { l.write(LevelDebug, msg) }
func (l *Logger) Info(msg string)  { l.write(LevelInfo, msg) }
func (l *Logger) Warn(msg string)  { l.write(LevelWarn, msg) }
func (l *Logger) Error(msg string) { l.write(LevelError, msg) }

// Fatal logs the message and exits the process.
func (l *Logger) Fatal(msg string) {
	l.write(LevelFatal, msg)
	os.Exit(1)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.write(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.write(LevelInfo, fmt.Sprintf(format, args...))
}

type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

func (l *Logger) write(level LogLevel, msg string) {
	if level < l.level {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   msg,
		Fields:    l.fields,
	}
	if level >= LevelError {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	if l.format == FormatText {
		fmt.Fprintln(l.out, formatText(entry))
		return
	}
	b, _ := json.Marshal(entry)
	fmt.Fprintln(l.out, string(b))
}

func formatText(entry logEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %s", entry.Timestamp, entry.Level, entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Fields[k])
	}
	if entry.Caller != "" {
		fmt.Fprintf(&sb, " caller=%s", entry.Caller)
	}
	return sb.String()
}

var globalLogger *Logger

// InitGlobalLogger sets the process-wide logger.
func InitGlobalLogger(level LogLevel, format LogFormat) {
	globalLogger = NewLogger(level, format)
}

// GetGlobalLogger returns the process-wide logger, initializing a JSON
// info-level logger on first use if none was configured.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo, FormatJSON)
	}
	return globalLogger
}

type loggerKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the context's logger, or the global one.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return GetGlobalLogger()
}

// ParseLogLevel maps a config string to a level, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// ParseLogFormat maps a config string to a format, defaulting to JSON.
func ParseLogFormat(format string) LogFormat {
	if strings.ToLower(format) == "text" {
		return FormatText
	}
	return FormatJSON
}
