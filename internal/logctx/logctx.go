// Package logctx carries request scoped logging attributes through a
// context.Context and renders them with a slog.Handler wrapper.
package logctx

import (
	"context"
	"log/slog"
)

// Handler adds the request, model and document data found in a record's
// context as attribute groups before delegating to the wrapped handler.
type Handler struct {
	slog.Handler
}

// New wraps h.
func New(h slog.Handler) Handler {
	return Handler{Handler: h}
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		attrs := []any{
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
		}
		if rd.Command != "" {
			attrs = append(attrs, slog.String("command", rd.Command))
		}
		r.AddAttrs(slog.Group("req", attrs...))
	}

	if md, ok := ctx.Value(modelDataKey{}).(*ModelData); ok {
		r.AddAttrs(slog.Group("model",
			slog.String("id", md.ModelID),
			slog.String("provider", md.ProviderID),
		))
	}

	if dd, ok := ctx.Value(documentDataKey{}).(*DocumentData); ok {
		r.AddAttrs(slog.Group("doc",
			slog.String("uri", dd.URI),
			slog.String("language", dd.LanguageID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type requestDataKey struct{}

// RequestData identifies one inbound request or command invocation.
type RequestData struct {
	RequestID string
	Method    string
	Command   string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

// RequestFrom returns the request data attached to ctx, if any.
func RequestFrom(ctx context.Context) (*RequestData, bool) {
	rd, ok := ctx.Value(requestDataKey{}).(*RequestData)
	return rd, ok
}

type modelDataKey struct{}

type ModelData struct {
	ModelID    string
	ProviderID string
}

func WithModelData(ctx context.Context, data *ModelData) context.Context {
	return context.WithValue(ctx, modelDataKey{}, data)
}

type documentDataKey struct{}

type DocumentData struct {
	URI        string
	LanguageID string
}

func WithDocumentData(ctx context.Context, data *DocumentData) context.Context {
	return context.WithValue(ctx, documentDataKey{}, data)
}
