// Package logger configures structured logging and carries the per-request
// correlation ID through contexts.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/VoteVerify/voteguard/internal/config"
)

// levelNames maps config strings to slog levels. Unknown names fall back to
// info rather than failing startup.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New builds the process logger: JSON records on stdout, tagged with the
// service name so aggregated logs can be filtered per deployment.
func New(cfg config.Logging) *slog.Logger {
	level, ok := levelNames[strings.ToLower(cfg.Level)]
	if !ok {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With("service", cfg.Service)
}
