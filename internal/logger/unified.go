package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogType selects where an entry is routed
type LogType string

const (
	UserLog LogType = "user"
	OpLog   LogType = "op"
)

// Field is a key-value pair attached to a structured entry
type Field struct {
	Key   string
	Value interface{}
}

// UnifiedLogger wraps the process-wide logrus logger
type UnifiedLogger struct {
	mu     sync.RWMutex
	logger *logrus.Logger
	base   logrus.Fields
}

var (
	unifiedLog *UnifiedLogger
	once       sync.Once
)

// GetLogger returns the global logger, creating it on first use
func GetLogger() *UnifiedLogger {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(os.Stdout)
		l.SetLevel(logrus.InfoLevel)
		l.SetFormatter(&CLIFormatter{DisableTimestamp: true, DisableLevel: true})
		unifiedLog = &UnifiedLogger{logger: l, base: logrus.Fields{}}
	})
	return unifiedLog
}

func WithLogType(logType LogType) Field {
	return Field{Key: "log_type", Value: string(logType)}
}

func WithEmoji(emoji string) Field {
	return Field{Key: "emoji", Value: emoji}
}

// WithFields converts a map into fields
func WithFields(fields map[string]interface{}) []Field {
	result := make([]Field, 0, len(fields))
	for k, v := range fields {
		result = append(result, Field{Key: k, Value: v})
	}
	return result
}

// SetBaseField attaches key=value to every operational entry logged from now
// on, e.g. the run id of a CLI invocation.
func (l *UnifiedLogger) SetBaseField(key string, value interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base[key] = value
}

// ClearBaseFields removes every field set with SetBaseField
func (l *UnifiedLogger) ClearBaseFields() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base = logrus.Fields{}
}

func (l *UnifiedLogger) entry(fields ...Field) *logrus.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	logFields := make(logrus.Fields, len(l.base)+len(fields))
	for k, v := range l.base {
		logFields[k] = v
	}
	for _, field := range fields {
		logFields[field.Key] = field.Value
	}
	return l.logger.WithFields(logFields)
}

func (l *UnifiedLogger) Info(msg string, fields ...Field) {
	l.entry(fields...).Info(msg)
}

func (l *UnifiedLogger) Infof(format string, args ...interface{}) {
	l.entry().Infof(format, args...)
}

func (l *UnifiedLogger) Error(msg string, fields ...Field) {
	l.entry(fields...).Error(msg)
}

func (l *UnifiedLogger) Warn(msg string, fields ...Field) {
	l.entry(fields...).Warn(msg)
}

func (l *UnifiedLogger) Debug(msg string, fields ...Field) {
	l.entry(fields...).Debug(msg)
}

// WithFieldsMap creates an entry carrying the base fields plus fields
func (l *UnifiedLogger) WithFieldsMap(fields map[string]interface{}) *logrus.Entry {
	return l.entry(WithFields(fields)...)
}

// Configure replaces output, level and formatter
func (l *UnifiedLogger) Configure(output io.Writer, level logrus.Level, formatter logrus.Formatter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.SetOutput(output)
	l.logger.SetLevel(level)
	l.logger.SetFormatter(formatter)
}

// GetInternalLogger returns the underlying logrus logger (use with caution)
func (l *UnifiedLogger) GetInternalLogger() *logrus.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.logger
}
