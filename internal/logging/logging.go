// Package logging builds the slog loggers used across tickos.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Clock reports the current kernel tick.
type Clock func() uint32

// NewLogger creates a logger writing to stderr (stdout carries reports).
//
// format is "text" or "json".
func NewLogger(level slog.Level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to the given writer.
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	return slog.New(newHandler(level, format, w))
}

// NewTickLogger creates a logger that stamps every record with the kernel
// tick read from clock.
func NewTickLogger(level slog.Level, format string, w io.Writer, clock Clock) *slog.Logger {
	return slog.New(&tickHandler{Handler: newHandler(level, format, w), clock: clock})
}

func newHandler(level slog.Level, format string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel converts a level name to slog.Level. An empty string is INFO.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ValidFormat reports whether s names a supported output format.
func ValidFormat(s string) bool {
	switch strings.ToLower(s) {
	case "", "text", "json":
		return true
	}
	return false
}

type tickHandler struct {
	slog.Handler
	clock Clock
}

func (h *tickHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.clock != nil {
		r.AddAttrs(slog.Uint64("tick", uint64(h.clock())))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *tickHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &tickHandler{Handler: h.Handler.WithAttrs(attrs), clock: h.clock}
}

func (h *tickHandler) WithGroup(name string) slog.Handler {
	return &tickHandler{Handler: h.Handler.WithGroup(name), clock: h.clock}
}
