package logging

import (
	"context"
	"fmt"
	"io"
	"os"
)

// NewDefaultLogger creates an INFO console logger on stdout
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Format: ConsoleFormat})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger builds the global logger from LOG_LEVEL, LOG_FORMAT and LOG_FILE.
// An empty LOG_FILE logs to stdout. The returned closer releases the log file.
func InitGlobalLogger() (io.Closer, error) {
	config := LogConfig{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: ParseFormat(os.Getenv("LOG_FORMAT")),
		Name:   "message-router",
	}

	var closer io.Closer = nopCloser{}
	logFileName := os.Getenv("LOG_FILE")
	if logFileName != "" {
		file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", logFileName, err)
		}
		config.Output = file
		closer = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	SetGlobalLogger(logger)
	logger.Info("Logger initialized",
		String("level", config.Level.String()),
		String("format", string(config.Format)),
		String("log_file", logFileName),
	)
	return closer, nil
}

// MustSync flushes buffered entries of the global logger before exit
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
