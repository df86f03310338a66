// Package log provides the process-wide zap logger.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu         sync.RWMutex
	sugar      *zap.SugaredLogger
	baseLogger *zap.Logger
)

// Init initializes the package-level logger
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	Set(zapLogger)
	return nil
}

// Set replaces the package-level logger. Tests use it with zaptest or zap.NewNop.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	baseLogger = l
	sugar = l.Sugar()
}

// GetZapLogger returns the base zap logger
func GetZapLogger() *zap.Logger {
	GetSugaredLogger()
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

// GetSugaredLogger returns the sugared logger instance
func GetSugaredLogger() *zap.SugaredLogger {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		return s
	}

	// Fallback logger if not initialized
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	if sugar == nil {
		baseLogger = l
		sugar = l.Sugar()
	}
	return sugar
}

// Sync flushes any buffered log entries
func Sync() {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		_ = s.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	GetSugaredLogger().Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	GetSugaredLogger().Info(args...)
}

func Infof(template string, args ...interface{}) {
	GetSugaredLogger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Infow(msg, keysAndValues...)
}

func Warn(args ...interface{}) {
	GetSugaredLogger().Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	GetSugaredLogger().Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Warnw(msg, keysAndValues...)
}

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Errorw(msg, keysAndValues...)
}

func Fatalf(template string, args ...interface{}) {
	GetSugaredLogger().Fatalf(template, args...)
}
