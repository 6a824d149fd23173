package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with scan context helpers
type Logger struct {
	zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr or file path
	// Writer overrides Output when set
	Writer io.Writer
}

// New creates a new logger with the given configuration
func New(cfg Config) *Logger {
	var output io.Writer = os.Stdout

	// Set output
	switch {
	case cfg.Writer != nil:
		output = cfg.Writer
	case cfg.Output == "stderr":
		output = os.Stderr
	case cfg.Output != "" && cfg.Output != "stdout":
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			output = file
		}
	}

	// Set format
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	// Parse level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	return &Logger{Logger: logger}
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
	}
}

// WithKeyword adds keyword fields to the logger
func (l *Logger) WithKeyword(id uint, text string) *Logger {
	return &Logger{
		Logger: l.With().
			Uint("keyword_id", id).
			Str("keyword", text).
			Logger(),
	}
}

// WithChannel adds the platform channel ID to the logger
func (l *Logger) WithChannel(platformID int64) *Logger {
	return &Logger{
		Logger: l.With().Int64("channel_id", platformID).Logger(),
	}
}

// Nop returns a logger that discards everything (for tests)
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}
