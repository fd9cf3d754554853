// Package commands exposes the type hierarchy as three host commands:
// prepare a session at a location, then expand supertypes or subtypes of an
// item.
//
// Commands always answer with a list. Missing providers, missing documents,
// provider failures and cache failures all produce an empty list; only an
// unknown command name or an undecodable argument is reported as an error.
//
// Expansion always targets the registry's current model, the one prepared
// most recently. Models are cached by id, but ids embedded in an item's data
// are not used to select a model.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/hierarchy"
	"github.com/ggoodman/typehierarchy-go/internal/logctx"
	"github.com/ggoodman/typehierarchy-go/modelcache"
	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"github.com/google/uuid"
	"go.lsp.dev/protocol"
)

// Command names.
const (
	PrepareCommand    = "typeHierarchy.prepare"
	SupertypesCommand = "typeHierarchy.supertypes"
	SubtypesCommand   = "typeHierarchy.subtypes"
)

// Direction selects an expansion.
type Direction int

const (
	Supertypes Direction = iota
	Subtypes
)

func (d Direction) String() string {
	if d == Subtypes {
		return "subtypes"
	}
	return "supertypes"
}

// DocumentOpener resolves documents by URI. *document.Store implements it.
type DocumentOpener interface {
	Open(ctx context.Context, u protocol.DocumentURI) (document.Document, error)
}

// Dispatcher runs the type hierarchy commands.
type Dispatcher struct {
	registry *hierarchy.Registry
	cache    modelcache.Cache
	docs     DocumentOpener
	log      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// New builds a dispatcher over registry, storing prepared models in cache and
// resolving documents through docs.
func New(registry *hierarchy.Registry, cache modelcache.Cache, docs DocumentOpener, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		cache:    cache,
		docs:     docs,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Registry returns the registry the dispatcher prepares models with.
func (d *Dispatcher) Registry() *hierarchy.Registry { return d.registry }

// Cache returns the model cache.
func (d *Dispatcher) Cache() modelcache.Cache { return d.cache }

// CreateModel opens the document at uri, prepares a model at pos with the
// caller's ctx and caches it. It returns (nil, nil) when no model results.
func (d *Dispatcher) CreateModel(ctx context.Context, uri protocol.DocumentURI, pos protocol.Position) (*hierarchy.Model, error) {
	doc, err := d.docs.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	m, err := d.registry.CreateModel(ctx, doc, pos)
	if err != nil || m == nil {
		return nil, err
	}
	if err := d.cache.Put(ctx, m); err != nil {
		d.log.WarnContext(ctx, "model cache put failed", slog.String("model", m.ID()), slog.String("err", err.Error()))
	}
	return m, nil
}

// Prepare starts a session at loc and returns the primary root, or an empty
// list. Cancellation of ctx is ignored.
func (d *Dispatcher) Prepare(ctx context.Context, loc protocol.Location) []typehierarchy.Item {
	ctx = context.WithoutCancel(ctx)
	m, err := d.CreateModel(ctx, loc.URI, loc.Range.Start)
	if err != nil {
		d.log.DebugContext(ctx, "prepare produced no model", slog.String("uri", string(loc.URI)), slog.String("err", err.Error()))
		return []typehierarchy.Item{}
	}
	if m == nil {
		return []typehierarchy.Item{}
	}
	return []typehierarchy.Item{m.Root()}
}

// Supertypes expands item against the current model. Cancellation of ctx is
// ignored.
func (d *Dispatcher) Supertypes(ctx context.Context, item typehierarchy.Item) []typehierarchy.Item {
	return d.Expand(context.WithoutCancel(ctx), Supertypes, item)
}

// Subtypes expands item against the current model. Cancellation of ctx is
// ignored.
func (d *Dispatcher) Subtypes(ctx context.Context, item typehierarchy.Item) []typehierarchy.Item {
	return d.Expand(context.WithoutCancel(ctx), Subtypes, item)
}

// Expand runs an expansion against the current model with the caller's ctx.
// It returns an empty list without a current model.
func (d *Dispatcher) Expand(ctx context.Context, dir Direction, item typehierarchy.Item) []typehierarchy.Item {
	m := d.registry.Current()
	if m == nil {
		d.log.DebugContext(ctx, "no current model", slog.String("op", dir.String()))
		return []typehierarchy.Item{}
	}
	if dir == Subtypes {
		return m.ResolveSubtypes(ctx, item)
	}
	return m.ResolveSupertypes(ctx, item)
}

// Execute decodes the single argument of the named command and runs it.
func (d *Dispatcher) Execute(ctx context.Context, name string, arg json.RawMessage) ([]typehierarchy.Item, error) {
	if _, ok := logctx.RequestFrom(ctx); !ok {
		ctx = logctx.WithRequestData(ctx, &logctx.RequestData{RequestID: uuid.NewString(), Method: "command", Command: name})
	}

	switch name {
	case PrepareCommand:
		var loc protocol.Location
		if err := decodeArg(arg, &loc); err != nil {
			return nil, err
		}
		if loc.URI == "" {
			return nil, fmt.Errorf("%w: location uri is required", ErrInvalidArgument)
		}
		return d.Prepare(ctx, loc), nil
	case SupertypesCommand, SubtypesCommand:
		var item typehierarchy.Item
		if err := decodeArg(arg, &item); err != nil {
			return nil, err
		}
		if name == SubtypesCommand {
			return d.Subtypes(ctx, item), nil
		}
		return d.Supertypes(ctx, item), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

func decodeArg(arg json.RawMessage, v any) error {
	if len(arg) == 0 || string(arg) == "null" {
		return fmt.Errorf("%w: missing argument", ErrInvalidArgument)
	}
	if err := json.Unmarshal(arg, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// Install registers the three commands into t.
func (d *Dispatcher) Install(t *Table) error {
	for _, c := range d.Commands() {
		name := c.Name
		err := t.Register(name, func(ctx context.Context, arg json.RawMessage) (any, error) {
			return d.Execute(ctx, name, arg)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
