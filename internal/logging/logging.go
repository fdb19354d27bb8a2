package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"ragqa/config"
)

// New builds the process logger from config. Unknown levels and formats
// were rejected by config validation, so they fall back to info and text.
func New(w io.Writer, cfg config.LoggingConfig) *log.Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter(cfg.Format),
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
}

func ParseLevel(s string) (log.Level, error) {
	if s == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func formatter(name string) log.Formatter {
	switch strings.ToLower(name) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
