// Package logger provides structured logging for qslurm.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tuanbt/qslurm/internal/config"
)

// FileName is the name of qslurm's own log file inside the log directory.
const FileName = "qslurm.log"

// NewEmbeddedLogger creates a logger that ONLY writes to file (for TUI embedding).
// Returns the logger and a cleanup function to close the file.
func NewEmbeddedLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := ParseLevel(cfg.LogLevel)

	// Ensure log directory exists
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, nil, err
	}

	logPath := filepath.Join(cfg.LogDirectory, FileName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	// File ONLY, no stdout
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	cleanup := func() { file.Close() }
	return slog.New(handler), cleanup, nil
}

// NewConsoleLogger creates a text logger on w for commands that do not take
// over the terminal.
func NewConsoleLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(cfg.LogLevel),
	})

	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
