package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel parses debug, info, warn or error (case insensitive).
func ParseLevel(raw string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.TrimSpace(raw)))
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return l, nil
}

// New creates the text logger used by efish, writing to w and, if
// mirror is not nil, to mirror as well.
func New(w io.Writer, level slog.Level, mirror io.Writer) *slog.Logger {
	if mirror != nil {
		w = io.MultiWriter(w, mirror)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
