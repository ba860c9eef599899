package logging

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// BreadcrumbHandler turns log records into breadcrumbs on the Sentry hub of
// the record's context, falling back to the current hub.
type BreadcrumbHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

func NewBreadcrumbHandler(level slog.Leveler) *BreadcrumbHandler {
	return &BreadcrumbHandler{level: level}
}

func (h *BreadcrumbHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *BreadcrumbHandler) Handle(ctx context.Context, record slog.Record) error {
	var hub *sentry.Hub
	if ctx != nil {
		hub = sentry.GetHubFromContext(ctx)
	}
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	data := make(map[string]any, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Resolve().Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		data[h.prefix+attr.Key] = attr.Value.Resolve().Any()
		return true
	})

	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  "log",
		Message:   record.Message,
		Level:     breadcrumbLevel(record.Level),
		Data:      data,
		Timestamp: record.Time,
	}, nil)
	return nil
}

func (h *BreadcrumbHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, attr := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.prefix + attr.Key, Value: attr.Value})
	}
	return &next
}

func (h *BreadcrumbHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func breadcrumbLevel(level slog.Level) sentry.Level {
	switch {
	case level >= slog.LevelError:
		return sentry.LevelError
	case level >= slog.LevelWarn:
		return sentry.LevelWarning
	case level >= slog.LevelInfo:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
