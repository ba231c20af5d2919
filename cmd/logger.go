package cmd

import (
	"io"
	"log/slog"
	"strings"

	"github.com/webitel/im-presence-service/config"
)

// NewLogger builds the process logger. The level is read through level so the
// config watcher can change it at runtime.
func NewLogger(cfg config.LogConfig, level *slog.LevelVar, w io.Writer) *slog.Logger {
	level.Set(ParseLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h).With("service", ServiceName)
}

func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
