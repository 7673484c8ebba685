package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync/atomic"
)

// Type alias for slog.Level for easier usage
type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug // -4
	LevelInfo    = slog.LevelInfo  // 0
	LevelWarning = slog.LevelWarn  // 4
	LevelError   = slog.LevelError // 8
	LevelFatal   = slog.Level(12)  // 12
)

var (
	logger       atomic.Pointer[slog.Logger]
	sampleRate   atomic.Int32
	programLevel = new(slog.LevelVar)
)

func init() {
	programLevel.Set(LevelInfo)
	sampleRate.Store(1)
	SetOutput(os.Stdout)
}

// Configure applies the level and warn/error sample rate from configuration.
// A sample rate of N logs one in every N warnings and errors; 1 logs all.
func Configure(level string, rate int) error {
	lvl, err := ParseLevel(level)
	programLevel.Set(lvl)
	if rate < 1 {
		rate = 1
	}
	sampleRate.Store(int32(rate))
	return err
}

// SetOutput replaces the JSON handler's destination
func SetOutput(w io.Writer) {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: programLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(lvl))
				}
			}
			return a
		},
	})
	l := slog.New(handler)
	logger.Store(l)
	slog.SetDefault(l)
}

// Logger returns the process logger
func Logger() *slog.Logger {
	return logger.Load()
}

// With returns a logger that always includes the given attributes
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// SetLevel sets the minimum log level for the logger
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current minimum log level
func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a string level name to slog.Level
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(levelStr) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

func levelName(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return "TRACE"
	case l >= LevelFatal:
		return "FATAL"
	default:
		return l.String()
	}
}

// shouldSample returns true if we should log this message
func shouldSample() bool {
	rate := sampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

// Trace logs a trace-level message
func Trace(msg string, args ...any) {
	Logger().Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs a debug-level message
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs an info-level message
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs a warning-level message, subject to sampling
func Warn(msg string, args ...any) {
	if shouldSample() {
		Logger().Warn(msg, args...)
	}
}

// Error logs an error-level message, subject to sampling
func Error(msg string, args ...any) {
	if shouldSample() {
		Logger().Error(msg, args...)
	}
}

// Fatal logs a fatal-level message and exits
func Fatal(msg string, args ...any) {
	Logger().Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}
