package log

import "sync"

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// SetDefaultLogger sets the logger behind the package level helpers.  Passing nil silences them, which is the state
// tests start in.
func SetDefaultLogger(logger *Logger) {
	mu.Lock()
	defaultLogger = logger
	mu.Unlock()
}

// DefaultLogger returns the current default logger
func DefaultLogger() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// withDefault runs fn against the default logger when one is installed
func withDefault(fn func(*Logger)) {
	if logger := DefaultLogger(); logger != nil {
		fn(logger)
	}
}

// Debug logs at debug level using the default logger
func Debug(msg string, args ...any) {
	withDefault(func(l *Logger) { l.Debug(msg, args...) })
}

// Info logs at info level using the default logger
func Info(msg string, args ...any) {
	withDefault(func(l *Logger) { l.Info(msg, args...) })
}

// Warn logs at warn level using the default logger.  Failures that are swallowed by policy land here.
func Warn(msg string, args ...any) {
	withDefault(func(l *Logger) { l.Warn(msg, args...) })
}

// Error logs at error level using the default logger
func Error(msg string, args ...any) {
	withDefault(func(l *Logger) { l.Error(msg, args...) })
}

// Trace logs through the default logger's fake trace level.  See (*Logger).Trace.
func Trace(msg string, args ...any) {
	withDefault(func(l *Logger) { l.Trace(msg, args...) })
}
