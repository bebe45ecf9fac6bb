// Package zerolog adapts a github.com/rs/zerolog logger to the SDK's
// logger.Logger interface.
package zerolog

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

type Handler struct {
	logger zerolog.Logger
}

// New wraps an existing zerolog.Logger.
func New(l zerolog.Logger) *Handler {
	return &Handler{logger: l}
}

// NewWriter builds a timestamped zerolog logger writing to w.
func NewWriter(w io.Writer) *Handler {
	return &Handler{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func (h *Handler) Error(msg string, args ...any) {
	h.log(h.logger.Error(), msg, args)
}

func (h *Handler) Warn(msg string, args ...any) {
	h.log(h.logger.Warn(), msg, args)
}

func (h *Handler) Info(msg string, args ...any) {
	h.log(h.logger.Info(), msg, args)
}

func (h *Handler) Debug(msg string, args ...any) {
	h.log(h.logger.Debug(), msg, args)
}

// log applies alternating key/value args to the event, slog-style.
// A trailing key without a value is recorded under the "!BADKEY" field,
// matching slog's behavior.
func (h *Handler) log(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		ev = ev.Interface("!BADKEY", args[len(args)-1])
	}
	ev.Msg(msg)
}
