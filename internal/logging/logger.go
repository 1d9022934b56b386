package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SafeLogger wraps a zap logger and tolerates nil receivers so packages can
// log before InitLogger runs (tests, CLI bootstrap).
type SafeLogger struct {
	logger *zap.Logger
}

var (
	// Logger is the global logger instance
	Logger = &SafeLogger{logger: zap.NewNop()}
)

// NewSafeLogger wraps an existing zap logger
func NewSafeLogger(l *zap.Logger) *SafeLogger {
	return &SafeLogger{logger: l}
}

// InitLogger initializes the global logger
func InitLogger() error {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Set log level from environment
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logLevel)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	l, err := config.Build(
		zap.AddCallerSkip(1),
		zap.Fields(
			zap.String("service", "app-crm"),
			zap.String("version", "v1"),
		),
	)
	if err != nil {
		return err
	}

	Logger = &SafeLogger{logger: l}
	zap.ReplaceGlobals(l)
	return nil
}

func (s *SafeLogger) Debug(msg string, fields ...zap.Field) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Debug(msg, fields...)
}

func (s *SafeLogger) Info(msg string, fields ...zap.Field) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Info(msg, fields...)
}

func (s *SafeLogger) Warn(msg string, fields ...zap.Field) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Warn(msg, fields...)
}

func (s *SafeLogger) Error(msg string, fields ...zap.Field) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Error(msg, fields...)
}

// Fatal logs and exits. A nil logger still exits.
func (s *SafeLogger) Fatal(msg string, fields ...zap.Field) {
	if s == nil || s.logger == nil {
		os.Exit(1)
	}
	s.logger.Fatal(msg, fields...)
}

// With returns a child logger carrying the given fields
func (s *SafeLogger) With(fields ...zap.Field) *SafeLogger {
	if s == nil {
		return nil
	}
	if s.logger == nil {
		return s
	}
	return &SafeLogger{logger: s.logger.With(fields...)}
}

// Named returns a child logger with the given name segment
func (s *SafeLogger) Named(name string) *SafeLogger {
	if s == nil || s.logger == nil {
		return s
	}
	return &SafeLogger{logger: s.logger.Named(name)}
}

// Unwrap returns the underlying zap logger, or a nop logger when unset
func (s *SafeLogger) Unwrap() *zap.Logger {
	if s == nil || s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// Sync flushes buffered log entries
func (s *SafeLogger) Sync() error {
	if s == nil || s.logger == nil {
		return nil
	}
	return s.logger.Sync()
}
