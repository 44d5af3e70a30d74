package config

import (
	"io"
	"log/slog"
	"os"
)

// ServiceName is attached to every log record.
const ServiceName = "smartevents"

// NewLogger writes JSON records to w when GO_ENV is production and text
// records otherwise. LOG_LEVEL selects the minimum level (default info).
func NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(os.Getenv("LOG_LEVEL"))}
	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", ServiceName)
}

// ParseLevel accepts debug, info, warn or error in any case. Unknown values map to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if s == "" || level.UnmarshalText([]byte(s)) != nil {
		return slog.LevelInfo
	}
	return level
}
