package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options selects where log lines go and how much is written.
type Options struct {
	Level string // debug, info, warn, error
	File  string // optional, appended to as JSON lines
	// Quiet drops console output, for when another component owns the terminal.
	Quiet bool
	// Console is the terminal-facing sink. Defaults to os.Stderr.
	Console io.Writer
}

// New builds the process logger. The returned closer releases the log file
// and is safe to call when none was opened.
func New(opts Options) (zerolog.Logger, func() error, error) {
	level := zerolog.WarnLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), noop, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var sinks []io.Writer
	if !opts.Quiet {
		if f, ok := console.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			sinks = append(sinks, zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen})
		} else {
			sinks = append(sinks, console)
		}
	}

	closer := noop
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Nop(), noop, err
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), noop, err
		}
		sinks = append(sinks, f)
		closer = f.Close
	}

	if len(sinks) == 0 {
		return zerolog.Nop(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, closer, nil
}

func noop() error { return nil }
