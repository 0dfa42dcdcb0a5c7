// Package logging points the global zerolog logger at a file. The terminal
// belongs to the TUI, so nothing is ever written to stderr.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. With an empty path logging is disabled
// and the returned closer is a no-op.
func Setup(path, level string) (io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nopCloser{}, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		log.Logger = zerolog.Nop()
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nopCloser{}, errors.Wrapf(err, "open log file %s", path)
	}
	log.Logger = New(f, lvl)
	return f, nil
}

// New builds a timestamped logger writing JSON lines to w.
func New(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("app", "haggle-tui").Logger()
}

func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel, errors.Wrapf(err, "invalid log level %q", level)
	}
	return lvl, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
