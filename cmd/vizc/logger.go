package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// newLogger builds the vizc logger from the -log-level and -log-format
// flags. Levels use slog's text form, so "debug", "warn" and offsets such as
// "info+2" are accepted; unknown levels and formats are errors rather than
// silent fallbacks.
func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid -log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid -log-format %q, want text or json", format)
}
