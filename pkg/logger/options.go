package logger

import (
	"io"
	"log/slog"
	"os"
)

// settings collects the choices Options make before a handler is built.
type settings struct {
	level  slog.Level
	json   bool
	pretty bool
	source bool
	out    []io.Writer
}

// Option adjusts one logger setting.
type Option func(*settings)

func defaults() settings {
	return settings{
		level: slog.LevelInfo,
		out:   []io.Writer{os.Stdout},
	}
}

// output collapses the configured writers into a single destination.
func (s settings) output() io.Writer {
	if len(s.out) == 1 {
		return s.out[0]
	}
	return io.MultiWriter(s.out...)
}

// WithDebug lowers the level to Debug when enabled, Info otherwise.
func WithDebug(enabled bool) Option {
	return func(s *settings) {
		s.level = slog.LevelInfo
		if enabled {
			s.level = slog.LevelDebug
		}
	}
}

// WithJSON selects the JSON handler. The serve command uses this for log
// files so entries stay machine-parseable.
func WithJSON(enabled bool) Option {
	return func(s *settings) {
		s.json = enabled
	}
}

// WithPretty selects the colorized charmbracelet handler for human-facing
// CLI output. Wins over WithJSON when both are set.
func WithPretty(enabled bool) Option {
	return func(s *settings) {
		s.pretty = enabled
	}
}

// WithSource annotates each record with the calling file and line.
func WithSource(enabled bool) Option {
	return func(s *settings) {
		s.source = enabled
	}
}

// WithWriter sends output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.out = []io.Writer{w}
	}
}

// WithWriters sends output to every writer in ws.
func WithWriters(ws ...io.Writer) Option {
	return func(s *settings) {
		s.out = ws
	}
}
