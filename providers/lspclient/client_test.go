package lspclient

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/typehierarchy-go/commands"
	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/hierarchy"
	"github.com/ggoodman/typehierarchy-go/lspserver"
	"github.com/ggoodman/typehierarchy-go/modelcache/memory"
	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

const shapeURI = protocol.DocumentURI("file:///src/shape.go")

func item(name string) typehierarchy.Item {
	return typehierarchy.Item{Name: name, Kind: protocol.SymbolKindClass, URI: shapeURI}
}

// serveDownstream runs an lspserver over one end of a pipe and returns the other.
func serveDownstream(t *testing.T, p hierarchy.Provider) net.Conn {
	t.Helper()
	reg := hierarchy.New()
	reg.Register(document.Selector{{Language: "go"}}, p)
	cache, err := memory.New(10)
	if err != nil {
		t.Fatalf("memory.New() failed: %v", err)
	}
	docs := document.NewStore()
	s, err := lspserver.New(commands.New(reg, cache, docs), docs)
	if err != nil {
		t.Fatalf("lspserver.New() failed: %v", err)
	}
	serverSide, clientSide := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Serve(ctx, serverSide) }()
	t.Cleanup(cancel)
	return clientSide
}

func TestClientForwardsRequests(t *testing.T) {
	var mu sync.Mutex
	var seen string
	p := hierarchy.ProviderFuncs{
		Prepare: func(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error) {
			mu.Lock()
			seen = doc.Text
			mu.Unlock()
			return []typehierarchy.Item{item("Circle")}, nil
		},
		Supertypes: func(ctx context.Context, it typehierarchy.Item) ([]typehierarchy.Item, error) {
			return []typehierarchy.Item{item("Shape")}, nil
		},
		Subtypes: func(ctx context.Context, it typehierarchy.Item) ([]typehierarchy.Item, error) {
			return []typehierarchy.Item{item("UnitCircle")}, nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := New(ctx, serveDownstream(t, p), WithRequireCapability())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer c.Close(ctx)

	if !c.Supported() {
		t.Fatalf("Supported() = false, want true")
	}
	if info := c.ServerInfo(); info == nil || info.Name == "" {
		t.Fatalf("ServerInfo() = %+v, want a server name", info)
	}

	doc := document.Document{URI: shapeURI, LanguageID: "go", Version: 1, Text: "type Circle struct{}"}
	roots, err := c.PrepareTypeHierarchy(ctx, doc, protocol.Position{})
	if err != nil {
		t.Fatalf("PrepareTypeHierarchy() failed: %v", err)
	}
	if len(roots) != 1 || roots[0].Name != "Circle" {
		t.Fatalf("PrepareTypeHierarchy() = %+v, want [Circle]", roots)
	}
	mu.Lock()
	got := seen
	mu.Unlock()
	if got != doc.Text {
		t.Fatalf("downstream saw text %q, want %q", got, doc.Text)
	}

	supers, err := c.ProvideSupertypes(ctx, roots[0])
	if err != nil {
		t.Fatalf("ProvideSupertypes() failed: %v", err)
	}
	if len(supers) != 1 || supers[0].Name != "Shape" {
		t.Fatalf("ProvideSupertypes() = %+v, want [Shape]", supers)
	}
	subs, err := c.ProvideSubtypes(ctx, roots[0])
	if err != nil {
		t.Fatalf("ProvideSubtypes() failed: %v", err)
	}
	if len(subs) != 1 || subs[0].Name != "UnitCircle" {
		t.Fatalf("ProvideSubtypes() = %+v, want [UnitCircle]", subs)
	}

	// A new version is pushed with didChange.
	doc.Version, doc.Text = 2, "type Circle struct{ r float64 }"
	if _, err := c.PrepareTypeHierarchy(ctx, doc, protocol.Position{}); err != nil {
		t.Fatalf("PrepareTypeHierarchy(v2) failed: %v", err)
	}
	mu.Lock()
	got = seen
	mu.Unlock()
	if got != doc.Text {
		t.Fatalf("downstream saw text %q after change, want %q", got, doc.Text)
	}
}

// fakeServer answers initialize without a type hierarchy capability and
// counts every other call.
func fakeServer(t *testing.T) (net.Conn, *int) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	calls := new(int)
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(serverSide))
	ctx, cancel := context.WithCancel(context.Background())
	conn.Go(ctx, func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		switch req.Method() {
		case protocol.MethodInitialize:
			return reply(ctx, json.RawMessage(`{"capabilities":{}}`), nil)
		case protocol.MethodInitialized, protocol.MethodShutdown, protocol.MethodExit:
			return reply(ctx, nil, nil)
		}
		*calls++
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.MethodNotFound, req.Method()))
	})
	t.Cleanup(func() {
		cancel()
		_ = conn.Close()
	})
	return clientSide, calls
}

func TestClientWithoutCapability(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rwc, calls := fakeServer(t)
	c, err := New(ctx, rwc)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer c.Close(ctx)

	if c.Supported() {
		t.Fatalf("Supported() = true, want false")
	}
	roots, err := c.PrepareTypeHierarchy(ctx, document.Document{URI: shapeURI, LanguageID: "go"}, protocol.Position{})
	if err != nil || roots != nil {
		t.Fatalf("PrepareTypeHierarchy() = %v, %v; want nil, nil", roots, err)
	}
	if *calls != 0 {
		t.Fatalf("downstream received %d calls, want 0", *calls)
	}
}

func TestRequireCapability(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rwc, _ := fakeServer(t)
	if _, err := New(ctx, rwc, WithRequireCapability()); err != ErrUnsupported {
		t.Fatalf("New() error = %v, want ErrUnsupported", err)
	}
}

func TestCapabilityEnabled(t *testing.T) {
	for raw, want := range map[string]bool{"": false, "null": false, "false": false, "true": true, `{"workDoneProgress":true}`: true} {
		if got := capabilityEnabled(json.RawMessage(raw)); got != want {
			t.Fatalf("capabilityEnabled(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestSpawnEmptyCommand(t *testing.T) {
	if _, err := Spawn(context.Background(), nil); err == nil {
		t.Fatalf("Spawn(nil) succeeded, want error")
	}
}

// notifyConn fails notifications while fail is set and records the rest.
type notifyConn struct {
	jsonrpc2.Conn
	fail    bool
	methods []string
}

func (n *notifyConn) Notify(ctx context.Context, method string, params any) error {
	if n.fail {
		return errors.New("broken pipe")
	}
	n.methods = append(n.methods, method)
	return nil
}

func TestSyncRetriesFailedOpen(t *testing.T) {
	conn := &notifyConn{fail: true}
	c := &Client{conn: conn, synced: make(map[protocol.DocumentURI]int32)}
	ctx := context.Background()
	doc := document.Document{URI: shapeURI, LanguageID: "go", Version: 1, Text: "package shapes"}

	if err := c.sync(ctx, doc); err == nil {
		t.Fatal("sync() succeeded over a failing connection")
	}
	conn.fail = false
	if err := c.sync(ctx, doc); err != nil {
		t.Fatalf("sync() failed: %v", err)
	}
	if err := c.sync(ctx, doc); err != nil {
		t.Fatalf("sync() of same version failed: %v", err)
	}
	doc.Version = 2
	if err := c.sync(ctx, doc); err != nil {
		t.Fatalf("sync(v2) failed: %v", err)
	}
	want := []string{protocol.MethodTextDocumentDidOpen, protocol.MethodTextDocumentDidChange}
	if len(conn.methods) != len(want) || conn.methods[0] != want[0] || conn.methods[1] != want[1] {
		t.Fatalf("notifications = %v, want %v", conn.methods, want)
	}
}

func TestCloseKillsUnresponsiveServer(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skipf("sleep not available: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rwc, _ := fakeServer(t)
	c, err := New(ctx, rwc)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	// Stands in for a server process that ignores exit.
	cmd := exec.Command(sleep, "60")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start %s: %v", sleep, err)
	}
	c.cmd = cmd

	closeCtx, closeCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer closeCancel()
	done := make(chan struct{})
	go func() {
		_ = c.Close(closeCtx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return after its context expired")
	}
	if cmd.ProcessState == nil {
		t.Fatal("server process was not reaped")
	}
}
