// Package logger provides opinionated structured logging for the mnemo
// system, built on log/slog.
package logger

import (
	"log/slog"

	charmlog "github.com/charmbracelet/log"
)

// New creates a *slog.Logger configured by the given options. The default
// is an Info-level text handler writing to stdout; WithJSON selects slog's
// JSON handler for service logs and WithPretty the charmbracelet/log
// handler for CLI output.
func New(opts ...Option) *slog.Logger {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}

	w := s.output()

	var handler slog.Handler
	switch {
	case s.pretty:
		handler = charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(s.level),
			ReportTimestamp: true,
			ReportCaller:    s.source,
		})
	case s.json:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     s.level,
			AddSource: s.source,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     s.level,
			AddSource: s.source,
		})
	}

	return slog.New(handler)
}
