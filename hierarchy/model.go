package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/internal/logctx"
	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"go.lsp.dev/protocol"
)

// Model is one browsing session: a provider binding plus the root items it
// prepared. Models are immutable.
type Model struct {
	id         string
	roots      []typehierarchy.Item
	providerID string
	provider   Provider
	createdAt  time.Time
	log        *slog.Logger
}

// ModelID derives a model id from its roots: the concatenated root URIs.
// Distinct sessions over the same roots share an id.
func ModelID(roots []typehierarchy.Item) string {
	var b strings.Builder
	for _, it := range roots {
		b.WriteString(string(it.URI))
	}
	return b.String()
}

// NewModel binds roots to provider. It fails with ErrNoRoots when roots is
// empty.
func NewModel(providerID string, provider Provider, roots []typehierarchy.Item) (*Model, error) {
	return newModel(providerID, provider, roots, time.Now(), nil)
}

func newModel(providerID string, provider Provider, roots []typehierarchy.Item, now time.Time, log *slog.Logger) (*Model, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	roots = slices.Clone(roots)
	return &Model{
		id:         ModelID(roots),
		roots:      roots,
		providerID: providerID,
		provider:   provider,
		createdAt:  now,
		log:        log,
	}, nil
}

// ID returns the model id.
func (m *Model) ID() string { return m.id }

// ProviderID returns the registration id of the bound provider.
func (m *Model) ProviderID() string { return m.providerID }

// Provider returns the bound provider. It may back other models too.
func (m *Model) Provider() Provider { return m.provider }

// CreatedAt returns when the model was prepared.
func (m *Model) CreatedAt() time.Time { return m.createdAt }

// Root returns the primary root, the first item the provider returned.
func (m *Model) Root() typehierarchy.Item { return m.roots[0] }

// Roots returns a copy of all root items.
func (m *Model) Roots() []typehierarchy.Item { return slices.Clone(m.roots) }

// CreateModel prepares a model for doc at pos using the top ranked provider.
// It returns (nil, nil) when no provider applies or the provider has no
// items, and (nil, err) with err matching ErrProviderFailed when the provider
// fails. A created model becomes the registry's current model.
func (r *Registry) CreateModel(ctx context.Context, doc document.Document, pos protocol.Position) (*Model, error) {
	ctx = logctx.WithDocumentData(ctx, &logctx.DocumentData{URI: string(doc.URI), LanguageID: doc.LanguageID})

	entries := r.Entries(doc)
	if len(entries) == 0 {
		r.logger().DebugContext(ctx, "no type hierarchy provider")
		return nil, nil
	}
	top := entries[0]

	roots, err := callProvider(top.ID, "prepare", func() ([]typehierarchy.Item, error) {
		return top.Provider.PrepareTypeHierarchy(ctx, doc, pos)
	})
	if err != nil {
		r.logger().WarnContext(ctx, "prepare failed", slog.String("provider", top.ID), slog.String("err", err.Error()))
		return nil, err
	}
	if len(roots) == 0 {
		r.logger().DebugContext(ctx, "prepare returned no items", slog.String("provider", top.ID))
		return nil, nil
	}

	m, err := newModel(top.ID, top.Provider, roots, r.now(), r.logger())
	if err != nil {
		return nil, err
	}
	r.setCurrent(m)

	r.logger().DebugContext(m.logContext(ctx), "model created", slog.Int("roots", len(roots)))
	return m, nil
}

// Supertypes expands item through the bound provider.
func (m *Model) Supertypes(ctx context.Context, item typehierarchy.Item) Result {
	return m.expand(ctx, "supertypes", item, m.provider.ProvideSupertypes)
}

// Subtypes expands item through the bound provider.
func (m *Model) Subtypes(ctx context.Context, item typehierarchy.Item) Result {
	return m.expand(ctx, "subtypes", item, m.provider.ProvideSubtypes)
}

// ResolveSupertypes is Supertypes collapsed to a never-nil slice.
func (m *Model) ResolveSupertypes(ctx context.Context, item typehierarchy.Item) []typehierarchy.Item {
	return m.Supertypes(ctx, item).ItemsOrEmpty()
}

// ResolveSubtypes is Subtypes collapsed to a never-nil slice.
func (m *Model) ResolveSubtypes(ctx context.Context, item typehierarchy.Item) []typehierarchy.Item {
	return m.Subtypes(ctx, item).ItemsOrEmpty()
}

func (m *Model) expand(ctx context.Context, op string, item typehierarchy.Item, fn func(context.Context, typehierarchy.Item) ([]typehierarchy.Item, error)) Result {
	ctx = m.logContext(ctx)
	items, err := callProvider(m.providerID, op, func() ([]typehierarchy.Item, error) {
		return fn(ctx, item)
	})
	if err != nil {
		m.log.WarnContext(ctx, "expansion failed", slog.String("op", op), slog.String("item", item.Name), slog.String("err", err.Error()))
		return Result{Err: err}
	}
	m.log.DebugContext(ctx, "expanded", slog.String("op", op), slog.String("item", item.Name), slog.Int("items", len(items)))
	return Result{Items: items}
}

func (m *Model) logContext(ctx context.Context) context.Context {
	return logctx.WithModelData(ctx, &logctx.ModelData{ModelID: m.id, ProviderID: m.providerID})
}

// callProvider runs fn, converting errors and panics into *ProviderError.
func callProvider(providerID, op string, fn func() ([]typehierarchy.Item, error)) (items []typehierarchy.Item, err error) {
	defer func() {
		if v := recover(); v != nil {
			items = nil
			err = &ProviderError{ProviderID: providerID, Op: op, Err: &PanicError{Value: v}}
		}
	}()
	items, err = fn()
	if err != nil {
		return nil, &ProviderError{ProviderID: providerID, Op: op, Err: err}
	}
	return items, nil
}

func (m *Model) String() string {
	return fmt.Sprintf("model(%s via %s, %d roots)", m.id, m.providerID, len(m.roots))
}
