// Package logging provides named, levelled loggers for the application
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// --------------------------------------------------------------------------
// Logger Interface
// --------------------------------------------------------------------------

// ILogger is the logging interface used throughout syndb.
// Each package obtains its own named logger via GetLogger.
type ILogger interface {
	SetLevel(level Level)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Level is the log level of a logger
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// ParseLevel converts a string level to a Level.
// It returns an error for unknown levels.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// --------------------------------------------------------------------------
// Custom Logger (implements ILogger with zerolog)
// --------------------------------------------------------------------------

// syndbLogger implements the ILogger interface with a named zerolog logger
type syndbLogger struct {
	mu     sync.Mutex
	name   string
	logger zerolog.Logger
}

func (l *syndbLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = l.logger.Level(level.zerolog())
}

func (l *syndbLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *syndbLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l *syndbLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *syndbLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Registry
// --------------------------------------------------------------------------

var (
	registryMu sync.Mutex
	registry   = map[string]*syndbLogger{}
)

// GetLogger returns the named logger, creating it on first use.
// Loggers are created at info level and write to stdout.
func GetLogger(pkgName string) ILogger {
	registryMu.Lock()
	defer registryMu.Unlock()

	if l, ok := registry[pkgName]; ok {
		return l
	}

	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	l := &syndbLogger{
		name:   pkgName,
		logger: zerolog.New(out).With().Timestamp().Str("component", pkgName).Logger().Level(zerolog.InfoLevel),
	}
	registry[pkgName] = l
	return l
}

// SetAllLevels sets the level of every registered logger.
// Used by the serve command to apply the configured log level.
func SetAllLevels(level Level) {
	registryMu.Lock()
	names := make([]*syndbLogger, 0, len(registry))
	for _, l := range registry {
		names = append(names, l)
	}
	registryMu.Unlock()

	for _, l := range names {
		l.SetLevel(level)
	}
}
