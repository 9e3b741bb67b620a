package errsink

import (
	"context"
	"log/slog"
	"os"

	"bibformat/internal/formaterror"
)

// LogHandler is a slog.Handler that writes to stdout the ordinary way and
// additionally forwards error-level records to a Manager, so operational
// errors (a misconfigured output directory, a cache that failed to warm)
// land in the same backends as per-record FormatErrors. Adapted from the
// teacher's BackendHandler, which does the analogous thing for enriched
// log lines instead of format errors.
type LogHandler struct {
	slog.Handler
	mgr *Manager
}

// NewLogHandler wraps a text handler writing to stdout at minLevel, mirroring
// records at slog.LevelError or above into mgr.
func NewLogHandler(minLevel slog.Level, mgr *Manager) *LogHandler {
	return &LogHandler{
		Handler: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: minLevel}),
		mgr:     mgr,
	}
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= slog.LevelError && h.mgr != nil {
		h.mgr.Register(&formaterror.FormatError{
			Code:    "InternalLog",
			Message: r.Message,
		})
	}
	return nil
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{Handler: h.Handler.WithAttrs(attrs), mgr: h.mgr}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{Handler: h.Handler.WithGroup(name), mgr: h.mgr}
}
