package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/hierarchy"
	"github.com/ggoodman/typehierarchy-go/modelcache"
	"github.com/ggoodman/typehierarchy-go/modelcache/memory"
	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"go.lsp.dev/protocol"
)

func item(name string) typehierarchy.Item {
	return typehierarchy.Item{
		Name: name,
		Kind: protocol.SymbolKindClass,
		URI:  protocol.DocumentURI("file:///" + name + ".go"),
		Data: json.RawMessage(fmt.Sprintf(`{"model":%q}`, name)),
	}
}

// memDocs serves every URI as a document of the language named by its
// extension.
var memDocs = document.NewStore(document.WithOpener(document.OpenerFunc(
	func(ctx context.Context, u protocol.DocumentURI) (document.Document, error) {
		if u == "file:///missing.go" {
			return document.Document{}, document.ErrDocumentNotFound
		}
		return document.Document{URI: u, LanguageID: document.LanguageForPath(string(u))}, nil
	})))

func newDispatcher(t *testing.T) (*Dispatcher, *hierarchy.Registry, modelcache.Cache) {
	t.Helper()
	reg := hierarchy.New()
	cache, err := memory.New(modelcache.DefaultCapacity)
	if err != nil {
		t.Fatalf("memory.New() failed: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return New(reg, cache, memDocs), reg, cache
}

func loc(uri string, line uint32) protocol.Location {
	return protocol.Location{
		URI:   protocol.DocumentURI(uri),
		Range: protocol.Range{Start: protocol.Position{Line: line}, End: protocol.Position{Line: line}},
	}
}

func TestPrepareReturnsPrimaryRootOnly(t *testing.T) {
	d, reg, cache := newDispatcher(t)
	var gotPos protocol.Position
	reg.Register(document.Selector{{Language: "go"}}, hierarchy.ProviderFuncs{
		Prepare: func(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error) {
			gotPos = pos
			return []typehierarchy.Item{item("A"), item("B"), item("C")}, nil
		},
	})

	got := d.Prepare(context.Background(), loc("file:///shape.go", 4))
	if len(got) != 1 || got[0].Name != "A" {
		t.Fatalf("Prepare() = %v, want [A]", got)
	}
	if gotPos.Line != 4 {
		t.Fatalf("provider position = %v, want range start", gotPos)
	}

	m, _ := cache.Get(context.Background(), "file:///A.gofile:///B.gofile:///C.go")
	if m == nil || len(m.Roots()) != 3 {
		t.Fatalf("cached model = %v", m)
	}
	if reg.Current() != m {
		t.Fatal("cached model is not current")
	}
}

func TestPrepareEmpty(t *testing.T) {
	d, reg, _ := newDispatcher(t)
	ctx := context.Background()

	got := d.Prepare(ctx, loc("file:///shape.go", 0))
	if got == nil || len(got) != 0 {
		t.Fatalf("Prepare() without provider = %#v, want []", got)
	}

	reg.Register(document.Selector{{Language: "go"}}, hierarchy.ProviderFuncs{
		Prepare: func(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error) {
			return nil, errors.New("boom")
		},
	})
	if got := d.Prepare(ctx, loc("file:///shape.go", 0)); got == nil || len(got) != 0 {
		t.Fatalf("Prepare() with failing provider = %#v, want []", got)
	}
	if got := d.Prepare(ctx, loc("file:///missing.go", 0)); got == nil || len(got) != 0 {
		t.Fatalf("Prepare() of missing document = %#v, want []", got)
	}
}

func TestCommandsIgnoreCancellation(t *testing.T) {
	d, reg, _ := newDispatcher(t)
	alive := func(ctx context.Context) error { return ctx.Err() }
	reg.Register(document.Selector{{Language: "go"}}, hierarchy.ProviderFuncs{
		Prepare: func(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error) {
			return []typehierarchy.Item{item("A")}, alive(ctx)
		},
		Supertypes: func(ctx context.Context, it typehierarchy.Item) ([]typehierarchy.Item, error) {
			return []typehierarchy.Item{item("Super")}, alive(ctx)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := d.Prepare(ctx, loc("file:///shape.go", 0)); len(got) != 1 {
		t.Fatalf("Prepare() with cancelled ctx = %v", got)
	}
	if got := d.Supertypes(ctx, item("A")); len(got) != 1 || got[0].Name != "Super" {
		t.Fatalf("Supertypes() with cancelled ctx = %v", got)
	}
}

func TestExpansionWithoutCurrentModel(t *testing.T) {
	d, _, _ := newDispatcher(t)
	ctx := context.Background()
	if got := d.Supertypes(ctx, item("A")); got == nil || len(got) != 0 {
		t.Fatalf("Supertypes() = %#v, want []", got)
	}
	if got := d.Subtypes(ctx, item("A")); got == nil || len(got) != 0 {
		t.Fatalf("Subtypes() = %#v, want []", got)
	}
}

// expander answers expansions with its own name so tests can tell which
// provider served them.
func expander(name string) hierarchy.ProviderFuncs {
	answer := func(ctx context.Context, it typehierarchy.Item) ([]typehierarchy.Item, error) {
		return []typehierarchy.Item{item(name + "<-" + it.Name)}, nil
	}
	return hierarchy.ProviderFuncs{
		Prepare: func(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error) {
			return []typehierarchy.Item{item(name)}, nil
		},
		Supertypes: answer,
		Subtypes:   answer,
	}
}

func TestExpansionUsesCurrentModelNotItemData(t *testing.T) {
	d, reg, _ := newDispatcher(t)
	reg.Register(document.Selector{{Language: "go"}}, expander("go"))
	reg.Register(document.Selector{{Language: "java"}}, expander("java"))
	ctx := context.Background()

	goRoot := d.Prepare(ctx, loc("file:///shape.go", 0))
	javaRoot := d.Prepare(ctx, loc("file:///Shape.java", 0))
	if len(goRoot) != 1 || len(javaRoot) != 1 {
		t.Fatalf("prepare results = %v, %v", goRoot, javaRoot)
	}

	// The item belongs to the go session; the java prepare is current.
	got := d.Subtypes(ctx, goRoot[0])
	if len(got) != 1 || got[0].Name != "java<-go" {
		t.Fatalf("Subtypes(go item) = %v, want served by java model", got)
	}
}

func TestPrepareFillsCacheFIFO(t *testing.T) {
	d, reg, cache := newDispatcher(t)
	reg.Register(document.Selector{{Language: "go"}}, hierarchy.ProviderFuncs{
		Prepare: func(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error) {
			return []typehierarchy.Item{item(fmt.Sprintf("T%d", pos.Line))}, nil
		},
	})
	ctx := context.Background()
	for i := uint32(0); i < 11; i++ {
		d.Prepare(ctx, loc("file:///shape.go", i))
	}
	keys, _ := cache.Keys(ctx)
	if len(keys) != 10 || keys[0] != "file:///T1.go" {
		t.Fatalf("cache keys = %v", keys)
	}
}

type failingCache struct{ modelcache.Cache }

func (failingCache) Put(context.Context, *hierarchy.Model) error { return errors.New("down") }

func TestPrepareSurvivesCacheFailure(t *testing.T) {
	reg := hierarchy.New()
	reg.Register(document.Selector{{Language: "go"}}, expander("go"))
	d := New(reg, failingCache{}, memDocs)
	got := d.Prepare(context.Background(), loc("file:///shape.go", 0))
	if len(got) != 1 || got[0].Name != "go" {
		t.Fatalf("Prepare() = %v", got)
	}
}

func TestExecute(t *testing.T) {
	d, reg, _ := newDispatcher(t)
	reg.Register(document.Selector{{Language: "go"}}, expander("go"))
	ctx := context.Background()

	got, err := d.Execute(ctx, PrepareCommand, json.RawMessage(`{"uri":"file:///shape.go","range":{"start":{"line":1,"character":2},"end":{"line":1,"character":2}}}`))
	if err != nil || len(got) != 1 || got[0].Name != "go" {
		t.Fatalf("Execute(prepare) = %v, %v", got, err)
	}
	if string(got[0].Data) != `{"model":"go"}` {
		t.Fatalf("data = %s", got[0].Data)
	}

	arg, _ := json.Marshal(got[0])
	got, err = d.Execute(ctx, SupertypesCommand, arg)
	if err != nil || len(got) != 1 || got[0].Name != "go<-go" {
		t.Fatalf("Execute(supertypes) = %v, %v", got, err)
	}

	cases := []struct {
		name string
		cmd  string
		arg  string
		want error
	}{
		{"unknown", "typeHierarchy.resolve", `{}`, ErrUnknownCommand},
		{"missing", PrepareCommand, ``, ErrInvalidArgument},
		{"null", SubtypesCommand, `null`, ErrInvalidArgument},
		{"malformed", SupertypesCommand, `{"name":`, ErrInvalidArgument},
		{"wrong shape", SubtypesCommand, `[1,2]`, ErrInvalidArgument},
		{"no uri", PrepareCommand, `{"range":{}}`, ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.Execute(ctx, tc.cmd, json.RawMessage(tc.arg)); !errors.Is(err, tc.want) {
				t.Fatalf("Execute() err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCommandSchemas(t *testing.T) {
	d, _, _ := newDispatcher(t)
	cmds := d.Commands()
	if len(cmds) != 3 {
		t.Fatalf("Commands() len = %d", len(cmds))
	}
	byName := map[string]Command{}
	for _, c := range cmds {
		byName[c.Name] = c
	}

	prep := byName[PrepareCommand].Argument
	if prep == nil || prep.Type != "object" {
		t.Fatalf("prepare schema = %+v", prep)
	}
	for _, key := range []string{"uri", "range"} {
		if _, ok := prep.Properties.Get(key); !ok {
			t.Fatalf("prepare schema missing %q", key)
		}
	}

	sup := byName[SupertypesCommand].Argument
	for _, key := range []string{"name", "kind", "uri", "range", "selectionRange", "data"} {
		if _, ok := sup.Properties.Get(key); !ok {
			t.Fatalf("item schema missing %q", key)
		}
	}
	if data, _ := sup.Properties.Get("data"); data.Type != "" {
		t.Fatalf("data schema type = %q, want unconstrained", data.Type)
	}
}
