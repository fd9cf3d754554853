package hierarchy

import (
	"context"

	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"go.lsp.dev/protocol"
)

// Provider answers type hierarchy queries for the documents it is registered
// for. ctx is cancelled when the caller abandons the request. A nil or empty
// slice means "no result".
type Provider interface {
	PrepareTypeHierarchy(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error)
	ProvideSupertypes(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error)
	ProvideSubtypes(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error)
}

// ProviderFuncs adapts plain functions to a Provider. Nil functions answer
// with no result.
type ProviderFuncs struct {
	Prepare    func(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error)
	Supertypes func(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error)
	Subtypes   func(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error)
}

var _ Provider = ProviderFuncs{}

func (f ProviderFuncs) PrepareTypeHierarchy(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error) {
	if f.Prepare == nil {
		return nil, nil
	}
	return f.Prepare(ctx, doc, pos)
}

func (f ProviderFuncs) ProvideSupertypes(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error) {
	if f.Supertypes == nil {
		return nil, nil
	}
	return f.Supertypes(ctx, item)
}

func (f ProviderFuncs) ProvideSubtypes(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error) {
	if f.Subtypes == nil {
		return nil, nil
	}
	return f.Subtypes(ctx, item)
}
