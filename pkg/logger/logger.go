// Package logger defines the leveled logging interface used across the SDK,
// along with a default implementation backed by log/slog.
//
// Everything in the SDK that logs does so through [Logger], so applications can
// plug in whatever logging backend they already use. See the zerolog subpackage
// for an adapter to github.com/rs/zerolog.
package logger

import (
	"log/slog"
)

// Logger is the minimal leveled logging surface the SDK needs.
// Arguments follow the slog convention of alternating keys and values.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type slogHandler struct {
	logger *slog.Logger
}

// New returns a Logger that forwards to a log/slog logger built on h.
func New(h slog.Handler) Logger {
	return &slogHandler{logger: slog.New(h)}
}

func (handler *slogHandler) Error(msg string, args ...any) {
	handler.logger.Error(msg, args...)
}

func (handler *slogHandler) Warn(msg string, args ...any) {
	handler.logger.Warn(msg, args...)
}

func (handler *slogHandler) Info(msg string, args ...any) {
	handler.logger.Info(msg, args...)
}

func (handler *slogHandler) Debug(msg string, args ...any) {
	handler.logger.Debug(msg, args...)
}
