package logging

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides leveled logging for extkeeper components.
// Every entry carries the component name and the process-wide session ID so
// that entries from one run can be correlated across restarts of the browser.
type Logger struct {
	sessionID string
	component string
	sugar     *zap.SugaredLogger
}

// Options controls how Init builds the shared backend.
type Options struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string
	// Format is json or console (default: console)
	Format string
	// File optionally mirrors all entries to a file in append mode
	File string
}

var (
	// Global session ID for the current process
	sessionID     string
	sessionIDOnce sync.Once

	baseMu sync.RWMutex
	base   = newDefaultBase()
)

// getSessionID returns or creates the session ID for this process
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

func newDefaultBase() *zap.Logger {
	l, err := build(Options{})
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", level)
	}
}

func build(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var config zap.Config
	switch opts.Format {
	case "json":
		config = zap.NewProductionConfig()
	case "", "console":
		config = zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be 'json' or 'console')", opts.Format)
	}

	config.Level = zap.NewAtomicLevelAt(level)
	config.Sampling = nil
	config.DisableStacktrace = true
	config.OutputPaths = []string{"stderr"}
	if opts.File != "" {
		config.OutputPaths = append(config.OutputPaths, opts.File)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Init replaces the shared backend used by loggers created afterwards.
// The returned function flushes buffered entries and should be deferred.
func Init(opts Options) (func() error, error) {
	logger, err := build(opts)
	if err != nil {
		return nil, err
	}
	SetBase(logger)
	return logger.Sync, nil
}

// SetBase installs an existing zap logger as the shared backend.
func SetBase(logger *zap.Logger) {
	baseMu.Lock()
	defer baseMu.Unlock()
	base = logger
}

// NewLogger creates a logger for a specific component on the shared backend.
func NewLogger(component string) *Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return FromZap(component, base)
}

// FromZap creates a component logger on top of an explicit zap logger.
func FromZap(component string, logger *zap.Logger) *Logger {
	sessID := getSessionID()
	return &Logger{
		sessionID: sessID,
		component: component,
		sugar: logger.With(
			zap.String("component", component),
			zap.String("session_id", sessID),
		).Sugar(),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return FromZap("nop", zap.NewNop())
}

// With returns a child logger carrying additional key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		sessionID: l.sessionID,
		component: l.component,
		sugar:     l.sugar.With(keysAndValues...),
	}
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Component returns the component name
func (l *Logger) Component() string {
	return l.component
}

// SessionID returns the current session ID
func (l *Logger) SessionID() string {
	return l.sessionID
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}
