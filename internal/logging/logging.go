// Package logging provides structured logging for the Comedy Pulse agent.
// It uses log/slog with a JSON handler by default, a tint console handler
// for interactive use, and an optional rotating log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options configures New.
type Options struct {
	Level  string
	Format string
	// File, when set, receives a copy of every record as JSON and is rotated
	// by size.
	File string
	// Output defaults to os.Stdout.
	Output io.Writer
}

// NewLogger creates a new structured JSON logger with the specified log level.
// Supported levels: debug, info, warn, error
func NewLogger(level string) *slog.Logger {
	return New(Options{Level: level})
}

// New builds a logger from opts.
func New(opts Options) *slog.Logger {
	lvl := ParseLevel(opts.Level)
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case FormatText:
		handler = tint.NewHandler(out, &tint.Options{
			Level:      lvl,
			AddSource:  lvl == slog.LevelDebug,
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: lvl,
			// Add source location for debug level
			AddSource: lvl == slog.LevelDebug,
		})
	}

	if opts.File != "" {
		file := slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}, &slog.HandlerOptions{Level: lvl})
		handler = slogmulti.Fanout(handler, file)
	}

	return slog.New(handler)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID returns a logger with request_id attribute
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithComponent returns a logger with component attribute
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithSessionGeneration returns a logger with generation attribute
func WithSessionGeneration(logger *slog.Logger, generation uint64) *slog.Logger {
	return logger.With("generation", generation)
}

// SanitizeToken masks a token for safe logging.
// Shows first 4 and last 4 characters only.
// Returns "****" for tokens shorter than 8 characters.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizePath masks sensitive parts of a file path.
// Replaces home directory with ~ for privacy.
func SanitizePath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
