package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Log formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	// Default: info
	Level string `yaml:"level,omitempty"`

	// Format is json or text.
	// Default: json
	Format string `yaml:"format,omitempty"`
}

// GetLevel returns the configured level, or info when unset or invalid.
func (l *LoggingConfig) GetLevel() slog.Level {
	lvl, err := l.level()
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// GetFormat returns the configured format or the default value.
func (l *LoggingConfig) GetFormat() string {
	if l == nil || l.Format == "" {
		return FormatJSON
	}
	return strings.ToLower(l.Format)
}

// NewLogger builds a logger writing to w with the configured level and format.
func (l *LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.GetLevel()}
	if l.GetFormat() == FormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func (l *LoggingConfig) level() (slog.Level, error) {
	if l == nil || l.Level == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return lvl, nil
}
