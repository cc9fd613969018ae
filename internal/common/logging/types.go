// Package logging provides the structured logger shared by the router, binder and brokers.
package logging

import (
	"context"
	"io"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Field is a key-value pair attached to a log entry
type Field struct {
	Key   string
	Value interface{}
}

// Logger is implemented by ZapAdapter and NopLogger
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Format selects the zap encoder
type Format string

const (
	ConsoleFormat Format = "console"
	JSONFormat    Format = "json"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level  LogLevel
	Format Format
	// Output defaults to stdout when nil
	Output io.Writer
	Name   string
}

// ParseLevel converts a string to a LogLevel, defaulting to InfoLevel
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// ParseFormat accepts "json"; anything else selects the console encoder
func ParseFormat(format string) Format {
	if strings.EqualFold(strings.TrimSpace(format), string(JSONFormat)) {
		return JSONFormat
	}
	return ConsoleFormat
}

type contextKey string

const (
	messageIDKey   contextKey = "message_id"
	destinationKey contextKey = "destination"
)

// ContextWithMessageID stores a message id picked up by Logger.WithContext
func ContextWithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey, id)
}

// ContextWithDestination stores a destination name picked up by Logger.WithContext
func ContextWithDestination(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, destinationKey, name)
}

func contextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field
	if id, ok := ctx.Value(messageIDKey).(string); ok && id != "" {
		fields = append(fields, String(string(messageIDKey), id))
	}
	if name, ok := ctx.Value(destinationKey).(string); ok && name != "" {
		fields = append(fields, String(string(destinationKey), name))
	}
	return fields
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
	initOnce     sync.Once
)

func initialize() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewDefaultLogger()
	}
}

// SetGlobalLogger replaces the process-wide logger
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the process-wide logger, creating a stdout logger on first use
func GetGlobalLogger() Logger {
	initOnce.Do(initialize)
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func Debug(msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field)               {}
func (NopLogger) Info(string, ...Field)                {}
func (NopLogger) Warn(string, ...Field)                {}
func (NopLogger) Error(string, error, ...Field)        {}
func (n NopLogger) WithFields(...Field) Logger         { return n }
func (n NopLogger) WithContext(context.Context) Logger { return n }
