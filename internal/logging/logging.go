// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phsym/console-slog"
	"github.com/samber/oops"
	slogmulti "github.com/samber/slog-multi"
)

// Formats accepted by Options.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options controls logger construction.
type Options struct {
	Level  string
	Format string
	// File, when set, receives a JSON copy of every record.
	File string
}

// Preinit installs a console logger used until configuration is loaded.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

// ParseLevel maps a level name to a slog level. Unknown names are an error.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, oops.In("logging").With("level", name).Wrapf(err, "unknown log level")
	}
	return level, nil
}

// New builds a logger writing to w in the configured format, fanned out to
// the optional log file. The returned closer releases the file.
func New(opts Options, w io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	router := slogmulti.Router()
	switch opts.Format {
	case FormatConsole:
		router = router.Add(console.NewHandler(w, &console.HandlerOptions{
			AddSource: level == slog.LevelDebug,
			Level:     level,
		}))
	case FormatJSON, "":
		router = router.Add(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	default:
		return nil, nil, oops.In("logging").With("format", opts.Format).Errorf("unknown log format")
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, oops.In("logging").With("file", opts.File).Wrapf(err, "create log directory")
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, oops.In("logging").With("file", opts.File).Wrapf(err, "open log file")
		}
		router = router.Add(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f
	}

	return slog.New(router.Handler()), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
