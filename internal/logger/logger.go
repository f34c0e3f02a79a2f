package logger

import (
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

var (
	mu  sync.RWMutex
	log = hclog.New(&hclog.LoggerOptions{
		Name:       "clubhouse",
		Level:      levelFromEnv(),
		JSONFormat: os.Getenv("LOG_FORMAT") == "json",
	})
)

func levelFromEnv() hclog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "trace":
		return hclog.Trace
	case "debug":
		return hclog.Debug
	case "warn":
		return hclog.Warn
	case "error":
		return hclog.Error
	default:
		return hclog.Info
	}
}

// SetLogger replaces the package logger. Used by tests and by main to
// attach a named logger per binary.
func SetLogger(l hclog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// Named returns a sub-logger for a component.
func Named(name string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.Named(name)
}

// Info logs informational messages
func Info(msg string, fields ...Field) {
	mu.RLock()
	defer mu.RUnlock()
	log.Info(msg, flatten(fields)...)
}

// Warn logs warning messages
func Warn(msg string, fields ...Field) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warn(msg, flatten(fields)...)
}

// Error logs error messages
func Error(msg string, fields ...Field) {
	mu.RLock()
	defer mu.RUnlock()
	log.Error(msg, flatten(fields)...)
}

// Debug logs debug messages
func Debug(msg string, fields ...Field) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug(msg, flatten(fields)...)
}

func flatten(fields []Field) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	return args
}

// Helper functions for common field types

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}
