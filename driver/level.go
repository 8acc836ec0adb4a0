package driver

import (
	"context"
	"log/slog"
)

// levelHandler gates a shared handler at its own level. Every match writes
// to the same output but decides its own verbosity.
type levelHandler struct {
	next  slog.Handler
	level slog.Leveler
}

// Leveled wraps h so records below level are dropped. h itself should
// accept everything the wrapper might let through.
func Leveled(h slog.Handler, level slog.Leveler) slog.Handler {
	return levelHandler{next: h, level: level}
}

func (h levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.next.Enabled(ctx, l)
}

func (h levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h levelHandler) WithGroup(name string) slog.Handler {
	return levelHandler{next: h.next.WithGroup(name), level: h.level}
}
