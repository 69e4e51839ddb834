// Package logrus adapts a github.com/sirupsen/logrus logger to
// shadowdb.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/Curzsu/ShadowDB"
)

// Logger wraps a logrus.Logger to implement shadowdb.Logger.
type Logger struct {
	logger *logrus.Logger
}

// New creates a shadowdb.Logger from a logrus.Logger.
func New(logger *logrus.Logger) shadowdb.Logger {
	return &Logger{logger: logger}
}

// Error logs an error message with key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.WithFields(argsToFields(args)).Error(msg)
}

// Warn logs a warning message with key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.WithFields(argsToFields(args)).Warn(msg)
}

// Info logs an info message with key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.WithFields(argsToFields(args)).Info(msg)
}

func argsToFields(args []any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return fields
}
