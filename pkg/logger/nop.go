package logger

import (
	"context"
	"log/slog"
)

// nopHandler drops every record.
type nopHandler struct{}

// Nop returns a *slog.Logger that discards everything. Handy as a default
// in constructors and in tests that don't assert on log output.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
