package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cagedcli/internal/config"
)

// NewLogger creates the slog logger for one pipeline stage. Output is always
// JSON; depending on configuration it goes to stdout, a log file, or both.
// The caller owns the returned closer; it is a no-op when no file is open.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Level),
	}

	var output io.Writer
	var closer io.Closer

	switch strings.ToLower(cfg.Output) {
	case "file":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
		closer = file
	case "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output = io.MultiWriter(os.Stdout, file)
		closer = file
	default:
		output = os.Stdout
	}
	if closer == nil {
		closer = nopCloser{}
	}

	return slog.New(slog.NewJSONHandler(output, opts)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogger builds the stage logger, installs it as the slog default and
// returns it. Use this in main() where a bad logging config is fatal.
func SetupLogger(cfg config.LoggingConfig, stage string) (*slog.Logger, io.Closer, error) {
	logger, closer, err := NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(slog.String("stage", stage))
	slog.SetDefault(logger)
	return logger, closer, nil
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openLogFile opens or creates a log file with proper permissions
func openLogFile(filePath string) (*os.File, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", filePath, err)
	}
	return file, nil
}
