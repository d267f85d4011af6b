// Package logging wraps logrus behind a small structured-field façade
// (WithField/WithFields plus leveled calls). The worker logs through it
// only when CPU pinning fails; admission, dispatch, overload and shutdown
// events are not logged.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is a thin façade over a *logrus.Logger, giving the rest of the
// module a small, stable surface (Debug/Info/Warn/Error plus WithFields)
// instead of depending on logrus types directly everywhere.
type Logger struct {
	entry *logrus.Entry
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Config configures a new Logger.
type Config struct {
	Level  logrus.Level
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration: info level,
// text formatter, writing to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  logrus.InfoLevel,
		Output: os.Stderr,
	}
}

// NewLogger builds a Logger from config, or DefaultConfig() if nil.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	base := logrus.New()
	base.SetOutput(output)
	base.SetLevel(config.Level)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: logrus.NewEntry(base)}
}

// Default returns the package-wide default logger, creating one on first
// use.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault replaces the package-wide default logger.
func SetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// WithFields returns a Logger scoped to the given structured fields,
// mirroring logrus.Entry.WithFields so callers can attach device_id,
// queue_len, kind, etc. once and reuse the result for a burst of calls.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithField is the single-field convenience form of WithFields.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debug(msg string) { l.entry.Debug(msg) }
func (l *Logger) Info(msg string)  { l.entry.Info(msg) }
func (l *Logger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *Logger) Error(msg string) { l.entry.Error(msg) }
