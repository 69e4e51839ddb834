// Package zap adapts a go.uber.org/zap logger to shadowdb.Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/Curzsu/ShadowDB"
)

// Logger wraps a zap.Logger to implement shadowdb.Logger.
type Logger struct {
	logger *zap.Logger
}

// New creates a shadowdb.Logger from a zap.Logger.
func New(logger *zap.Logger) shadowdb.Logger {
	return &Logger{logger: logger}
}

// Error logs an error message with key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Sugar().Errorw(msg, args...)
}

// Warn logs a warning message with key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Sugar().Warnw(msg, args...)
}

// Info logs an info message with key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Sugar().Infow(msg, args...)
}
