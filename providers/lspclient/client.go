// Package lspclient provides a type hierarchy provider that forwards queries
// to a downstream language server over go.lsp.dev/jsonrpc2.
//
// The client performs the initialize handshake when it is created, mirrors
// the documents it is asked about with textDocument/didOpen and didChange,
// and relays the three type hierarchy requests. Errors returned by the
// downstream server are returned as provider errors.
package lspclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/hierarchy"
	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// ErrUnsupported is returned by New when the downstream server does not
// advertise the type hierarchy capability and WithRequireCapability is set.
var ErrUnsupported = errors.New("lspclient: server does not support type hierarchy")

// Client is a hierarchy.Provider backed by a language server.
type Client struct {
	conn    jsonrpc2.Conn
	closer  io.Closer
	cmd     *exec.Cmd
	log     *slog.Logger
	rootURI protocol.DocumentURI
	require bool

	supported bool
	info      *protocol.ServerInfo

	mu     sync.Mutex
	synced map[protocol.DocumentURI]int32

	closeOnce sync.Once
	closeErr  error
}

var _ hierarchy.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRootURI sets the workspace root sent in initialize.
func WithRootURI(u protocol.DocumentURI) Option {
	return func(c *Client) { c.rootURI = u }
}

// WithRequireCapability makes New fail with ErrUnsupported when the server
// lacks typeHierarchyProvider.
func WithRequireCapability() Option {
	return func(c *Client) { c.require = true }
}

// New connects to a server speaking LSP on rwc and initializes it.
func New(ctx context.Context, rwc io.ReadWriteCloser, opts ...Option) (*Client, error) {
	c := &Client{
		closer: rwc,
		log:    slog.New(slog.DiscardHandler),
		synced: make(map[protocol.DocumentURI]int32),
	}
	for _, o := range opts {
		o(c)
	}
	c.conn = jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	c.conn.Go(ctx, c.handleServer)

	if err := c.initialize(ctx); err != nil {
		_ = c.conn.Close()
		return nil, err
	}
	return c, nil
}

type stdio struct {
	io.ReadCloser
	io.WriteCloser
}

func (s stdio) Close() error {
	werr := s.WriteCloser.Close()
	rerr := s.ReadCloser.Close()
	return errors.Join(werr, rerr)
}

// Spawn starts argv as a child process and speaks LSP over its stdio.
func Spawn(ctx context.Context, argv []string, opts ...Option) (*Client, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("lspclient: empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("lspclient: start %s: %w", argv[0], err)
	}
	c, err := New(ctx, stdio{ReadCloser: stdout, WriteCloser: stdin}, opts...)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	c.cmd = cmd
	return c, nil
}

type clientCapabilities struct {
	TextDocument struct {
		Synchronization struct {
			DidSave bool `json:"didSave"`
		} `json:"synchronization"`
		TypeHierarchy typehierarchy.ClientCapabilities `json:"typeHierarchy"`
	} `json:"textDocument"`
}

type initializeParams struct {
	ProcessID    int32                `json:"processId"`
	ClientInfo   protocol.ClientInfo  `json:"clientInfo"`
	RootURI      protocol.DocumentURI `json:"rootUri,omitempty"`
	Capabilities clientCapabilities   `json:"capabilities"`
}

type initializeResult struct {
	Capabilities struct {
		TypeHierarchyProvider json.RawMessage `json:"typeHierarchyProvider,omitempty"`
	} `json:"capabilities"`
	ServerInfo *protocol.ServerInfo `json:"serverInfo,omitempty"`
}

func (c *Client) initialize(ctx context.Context) error {
	params := initializeParams{
		ProcessID:  int32(os.Getpid()),
		ClientInfo: protocol.ClientInfo{Name: "typehierarchyd"},
		RootURI:    c.rootURI,
	}
	var res initializeResult
	if _, err := c.conn.Call(ctx, protocol.MethodInitialize, params, &res); err != nil {
		return fmt.Errorf("lspclient: initialize: %w", err)
	}
	c.supported = capabilityEnabled(res.Capabilities.TypeHierarchyProvider)
	c.info = res.ServerInfo
	if c.require && !c.supported {
		return ErrUnsupported
	}
	if err := c.conn.Notify(ctx, protocol.MethodInitialized, struct{}{}); err != nil {
		return fmt.Errorf("lspclient: initialized: %w", err)
	}
	if c.info != nil {
		c.log.InfoContext(ctx, "language server initialized", slog.String("server", c.info.Name), slog.Bool("type_hierarchy", c.supported))
	}
	return nil
}

// capabilityEnabled accepts true or any options object.
func capabilityEnabled(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", "false":
		return false
	}
	return true
}

// handleServer answers server-to-client requests with an empty result and
// ignores notifications.
func (c *Client) handleServer(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	c.log.DebugContext(ctx, "server message", slog.String("method", req.Method()))
	return reply(ctx, nil, nil)
}

// Supported reports whether the server advertised type hierarchy support.
func (c *Client) Supported() bool { return c.supported }

// ServerInfo returns what the server reported about itself, if anything.
func (c *Client) ServerInfo() *protocol.ServerInfo { return c.info }

// sync sends didOpen or didChange so the server sees the text providers are
// asked about. A version is recorded only once the server was sent it.
func (c *Client) sync(ctx context.Context, doc document.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	version, open := c.synced[doc.URI]
	if open && version == doc.Version {
		return nil
	}

	var err error
	if !open {
		err = c.conn.Notify(ctx, protocol.MethodTextDocumentDidOpen, map[string]any{
			"textDocument": map[string]any{
				"uri":        doc.URI,
				"languageId": doc.LanguageID,
				"version":    doc.Version,
				"text":       doc.Text,
			},
		})
	} else {
		err = c.conn.Notify(ctx, protocol.MethodTextDocumentDidChange, map[string]any{
			"textDocument":   map[string]any{"uri": doc.URI, "version": doc.Version},
			"contentChanges": []map[string]any{{"text": doc.Text}},
		})
	}
	if err != nil {
		return err
	}
	c.synced[doc.URI] = doc.Version
	return nil
}

func (c *Client) PrepareTypeHierarchy(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error) {
	if !c.supported {
		return nil, nil
	}
	if err := c.sync(ctx, doc); err != nil {
		return nil, fmt.Errorf("lspclient: sync %s: %w", doc.URI, err)
	}
	var params typehierarchy.PrepareParams
	params.TextDocument = protocol.TextDocumentIdentifier{URI: doc.URI}
	params.Position = pos
	return c.call(ctx, typehierarchy.PrepareMethod, params)
}

func (c *Client) ProvideSupertypes(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error) {
	if !c.supported {
		return nil, nil
	}
	return c.call(ctx, typehierarchy.SupertypesMethod, typehierarchy.SupertypesParams{Item: item})
}

func (c *Client) ProvideSubtypes(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error) {
	if !c.supported {
		return nil, nil
	}
	return c.call(ctx, typehierarchy.SubtypesMethod, typehierarchy.SubtypesParams{Item: item})
}

func (c *Client) call(ctx context.Context, method typehierarchy.Method, params any) ([]typehierarchy.Item, error) {
	var items []typehierarchy.Item
	if _, err := c.conn.Call(ctx, string(method), params, &items); err != nil {
		return nil, fmt.Errorf("lspclient: %s: %w", method, err)
	}
	return items, nil
}

// Close shuts the server down politely and releases the connection and any
// spawned process.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if _, err := c.conn.Call(ctx, protocol.MethodShutdown, nil, nil); err != nil {
			c.log.DebugContext(ctx, "shutdown failed", slog.String("err", err.Error()))
		}
		_ = c.conn.Notify(ctx, protocol.MethodExit, nil)
		c.closeErr = c.conn.Close()
		if c.cmd != nil {
			waitOrKill(ctx, c.cmd)
		}
	})
	return c.closeErr
}

// waitOrKill reaps cmd, killing it if it is still running when ctx is done.
func waitOrKill(ctx context.Context, cmd *exec.Cmd) {
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
	}
}
