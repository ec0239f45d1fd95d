// Package logger provides structured logging for the conductor runtime.
//
// Every long-running subsystem (pattern engine, mission orchestrator,
// watchdog, sandbox) logs through a shared *slog.Logger with structured
// key-value attributes (mission_id, session_id, node_id, phase_id) rather
// than formatted strings. Records from third-party packages are dropped
// entirely unless the configured level is debug; conductor's own records
// are filtered by level only.
package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

var defaultLogger *slog.Logger

const conductorPackagePrefix = "github.com/conductorhq/conductor"

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn, error.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// Config controls how Init builds the default logger.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // text|json
}

// Init installs a process-wide default logger and returns it. Callers
// that need a scoped logger should use Default().With(...) rather than
// calling Init again.
func Init(cfg Config) *slog.Logger {
	level, _ := ParseLevel(cfg.Level)

	var base slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		base = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		base = slog.NewTextHandler(os.Stderr, opts)
	}

	handler := &filteringHandler{handler: base, minLevel: level}
	defaultLogger = slog.New(handler)
	return defaultLogger
}

// Default returns the process-wide logger, initializing a sane fallback
// (info level, text format) if Init was never called.
func Default() *slog.Logger {
	if defaultLogger == nil {
		return Init(Config{Level: "info", Format: "text"})
	}
	return defaultLogger
}

// filteringHandler wraps a slog.Handler and suppresses logs emitted by
// third-party dependencies unless the configured level is debug.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.minLevel {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug {
		return h.handler.Handle(ctx, record)
	}
	if h.isConductorPackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) isConductorPackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	fullName := fn.Name()
	file, _ := fn.FileLine(pc)
	return strings.Contains(fullName, conductorPackagePrefix) || strings.Contains(file, "/conductor/")
}
