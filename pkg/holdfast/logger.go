package holdfast

import (
	"context"
	"log/slog"
)

// loggerHandler adapts a Logger to slog so the internal packages can keep
// using *slog.Logger. Attributes are flattened to key/value pairs, with
// group names joined by dots.
type loggerHandler struct {
	logger Logger
	attrs  []any
	group  string
}

func newLoggerHandler(logger Logger) *loggerHandler {
	return &loggerHandler{logger: logger}
}

func (h *loggerHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *loggerHandler) Handle(_ context.Context, r slog.Record) error {
	args := make([]any, 0, len(h.attrs)+2*r.NumAttrs())
	args = append(args, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		args = appendAttr(args, h.group, a)
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		h.logger.Error(r.Message, args...)
	case r.Level >= slog.LevelWarn:
		h.logger.Warn(r.Message, args...)
	case r.Level >= slog.LevelInfo:
		h.logger.Info(r.Message, args...)
	default:
		h.logger.Debug(r.Message, args...)
	}
	return nil
}

func (h *loggerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]any(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = appendAttr(next.attrs, h.group, a)
	}
	return &next
}

func (h *loggerHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = join(h.group, name)
	return &next
}

func appendAttr(args []any, group string, a slog.Attr) []any {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			args = appendAttr(args, join(group, a.Key), ga)
		}
		return args
	}
	if a.Key == "" {
		return args
	}
	return append(args, join(group, a.Key), v.Any())
}

func join(group, key string) string {
	if group == "" {
		return key
	}
	if key == "" {
		return group
	}
	return group + "." + key
}
