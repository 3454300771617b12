// Package logger configures the process-wide slog logger and carries
// request-scoped attributes through contexts.
package logger

import (
	"context"
	"io"
	"log/slog"
)

type requestIDKey struct{}

// Setup installs and returns the default logger. format is "json" or
// "text"; output goes to w so command-line tools can keep stdout for
// results. Unknown levels fall back to info.
func Setup(w io.Writer, level string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	l := slog.New(contextHandler{handler})
	slog.SetDefault(l)
	return l
}

// ParseLevel accepts slog level names in any case, with optional offsets
// such as "debug+2".
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

// FromContext returns the default logger bound to ctx, so records it emits
// carry ctx's request id even through the non-Context logging methods.
func FromContext(ctx context.Context) *slog.Logger {
	return slog.New(boundHandler{inner: slog.Default().Handler(), ctx: ctx})
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// contextHandler adds the request id found in the record's context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := RequestID(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// boundHandler substitutes a fixed context for the one records arrive with.
type boundHandler struct {
	inner slog.Handler
	ctx   context.Context
}

func (h boundHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.inner.Enabled(h.ctx, level)
}

func (h boundHandler) Handle(_ context.Context, r slog.Record) error {
	return h.inner.Handle(h.ctx, r)
}

func (h boundHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return boundHandler{inner: h.inner.WithAttrs(attrs), ctx: h.ctx}
}

func (h boundHandler) WithGroup(name string) slog.Handler {
	return boundHandler{inner: h.inner.WithGroup(name), ctx: h.ctx}
}
