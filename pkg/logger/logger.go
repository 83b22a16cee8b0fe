package logger

import (
	"go.uber.org/zap"
)

// Logger is the process-wide logger. It is a no-op until Init is called,
// so library code and tests can log without setup.
var Logger = zap.NewNop()

// Init builds the global logger. Debug mode uses the human-readable
// development config.
func Init(debug bool) error {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	logger, err := config.Build()
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

func Debug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Logger.Error(msg, fields...)
}

// Fatal logs the message and exits the process.
func Fatal(msg string, fields ...zap.Field) {
	Logger.Fatal(msg, fields...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return Logger.Sync()
}
