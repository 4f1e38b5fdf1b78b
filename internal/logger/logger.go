package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/medscribe/scribe/internal/config"
)

// Setup configures structured logging for the CLI with a text handler.
// The TUI should pass a file or io.Discard so log output does not fight
// bubbletea for the terminal.
func Setup(cfg *config.Config, out io.Writer) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	return install(slog.NewTextHandler(orStdout(out), &slog.HandlerOptions{
		Level: level(cfg),
	}))
}

// SetupJSON configures structured logging with a JSON handler for the
// stub server.
func SetupJSON(cfg *config.Config, out io.Writer) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	return install(slog.NewJSONHandler(orStdout(out), &slog.HandlerOptions{
		Level: level(cfg),
	}))
}

func level(cfg *config.Config) slog.Level {
	logLevel := slog.LevelInfo
	if cfg.Env == "development" {
		logLevel = slog.LevelDebug
	}
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}

	return logLevel
}

func orStdout(out io.Writer) io.Writer {
	if out == nil {
		return os.Stdout
	}

	return out
}

func install(handler slog.Handler) *slog.Logger {
	logger := slog.New(handler)

	// Set as default logger
	slog.SetDefault(logger)

	return logger
}
