// Package lspserver serves the type hierarchy over the Language Server
// Protocol using go.lsp.dev/jsonrpc2.
//
// The server keeps a document.Store in sync with the editor (full text sync),
// answers the three type hierarchy requests and runs the hierarchy commands
// through workspace/executeCommand. Type hierarchy requests get a context
// that $/cancelRequest or a closed connection cancels; commands run with
// cancellation ignored.
package lspserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ggoodman/typehierarchy-go/commands"
	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/internal/logctx"
	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"github.com/google/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Server is a single-connection language server.
type Server struct {
	dispatcher *commands.Dispatcher
	docs       *document.Store
	table      *commands.Table
	log        *slog.Logger
	info       protocol.ServerInfo

	mu          sync.Mutex
	initialized bool
	shutdown    bool
	inflight    map[string]context.CancelFunc
	wg          sync.WaitGroup

	exitOnce sync.Once
	exited   chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) Option {
	return func(s *Server) { s.info = protocol.ServerInfo{Name: name, Version: version} }
}

// WithCommandTable executes workspace/executeCommand through t instead of a
// private table holding only the dispatcher's commands.
func WithCommandTable(t *commands.Table) Option {
	return func(s *Server) { s.table = t }
}

// New builds a server. docs must be the store the dispatcher opens documents
// from so that editor buffers are visible to providers.
func New(d *commands.Dispatcher, docs *document.Store, opts ...Option) (*Server, error) {
	s := &Server{
		dispatcher: d,
		docs:       docs,
		log:        slog.New(slog.DiscardHandler),
		info:       protocol.ServerInfo{Name: "typehierarchyd"},
		inflight:   make(map[string]context.CancelFunc),
		exited:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.table == nil {
		s.table = commands.NewTable()
		if err := d.Install(s.table); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Serve runs the protocol on rwc until the client exits, the connection
// closes or ctx is done.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	conn.Go(ctx, s.Handler())

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-s.exited:
	case <-conn.Done():
		err = conn.Err()
	}
	_ = conn.Close()
	s.cancelAll()
	s.wg.Wait()
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return err
}

// Handler returns the jsonrpc2 handler of the server.
func (s *Server) Handler() jsonrpc2.Handler {
	return s.handle
}

func (s *Server) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{RequestID: requestID(req), Method: req.Method()})
	s.log.DebugContext(ctx, "lsp message")

	switch req.Method() {
	case protocol.MethodInitialize:
		return s.initialize(ctx, reply, req)
	case protocol.MethodExit:
		s.exitOnce.Do(func() { close(s.exited) })
		return reply(ctx, nil, nil)
	case cancelRequestMethod:
		var p cancelParams
		if err := json.Unmarshal(req.Params(), &p); err == nil {
			s.cancel(string(bytes.TrimSpace(p.ID)))
		}
		return reply(ctx, nil, nil)
	}

	s.mu.Lock()
	initialized, shutdown := s.initialized, s.shutdown
	s.mu.Unlock()
	if !initialized {
		return reply(ctx, nil, jsonrpc2.NewError(codeServerNotInitialized, "server not initialized"))
	}
	if shutdown {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server is shutting down"))
	}

	switch req.Method() {
	case protocol.MethodInitialized:
		return reply(ctx, nil, nil)
	case protocol.MethodShutdown:
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return reply(ctx, nil, nil)

	case protocol.MethodTextDocumentDidOpen:
		var p protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, invalidParams(err))
		}
		s.docs.DidOpen(document.Document{
			URI:        p.TextDocument.URI,
			LanguageID: string(p.TextDocument.LanguageID),
			Version:    int32(p.TextDocument.Version),
			Text:       p.TextDocument.Text,
		})
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidChange:
		var p protocol.DidChangeTextDocumentParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, invalidParams(err))
		}
		if n := len(p.ContentChanges); n > 0 {
			// Full sync: the last change holds the whole text.
			s.docs.DidChange(p.TextDocument.URI, int32(p.TextDocument.Version), p.ContentChanges[n-1].Text)
		}
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidClose:
		var p protocol.DidCloseTextDocumentParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, invalidParams(err))
		}
		s.docs.DidClose(p.TextDocument.URI)
		return reply(ctx, nil, nil)

	case string(typehierarchy.PrepareMethod):
		var p typehierarchy.PrepareParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, invalidParams(err))
		}
		s.async(ctx, reply, req, func(ctx context.Context) (any, error) {
			return s.prepare(ctx, p)
		})
		return nil
	case string(typehierarchy.SupertypesMethod):
		var p typehierarchy.SupertypesParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, invalidParams(err))
		}
		s.async(ctx, reply, req, func(ctx context.Context) (any, error) {
			return s.dispatcher.Expand(ctx, commands.Supertypes, p.Item), nil
		})
		return nil
	case string(typehierarchy.SubtypesMethod):
		var p typehierarchy.SubtypesParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, invalidParams(err))
		}
		s.async(ctx, reply, req, func(ctx context.Context) (any, error) {
			return s.dispatcher.Expand(ctx, commands.Subtypes, p.Item), nil
		})
		return nil

	case protocol.MethodWorkspaceExecuteCommand:
		var p executeCommandParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, invalidParams(err))
		}
		var arg json.RawMessage
		if len(p.Arguments) > 0 {
			arg = p.Arguments[0]
		}
		rctx := logctx.WithRequestData(ctx, &logctx.RequestData{RequestID: requestID(req), Method: req.Method(), Command: p.Command})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			res, err := s.table.Execute(context.WithoutCancel(rctx), p.Command, arg)
			if err != nil {
				_ = reply(rctx, nil, invalidParams(err))
				return
			}
			_ = reply(rctx, res, nil)
		}()
		return nil
	}

	if _, ok := req.(*jsonrpc2.Call); !ok {
		// Unknown notifications are ignored.
		return nil
	}
	return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method())))
}

func (s *Server) initialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var p initializeParams
	if err := json.Unmarshal(req.Params(), &p); err != nil {
		return reply(ctx, nil, invalidParams(err))
	}
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "initialize already received"))
	}
	s.initialized = true
	s.mu.Unlock()

	if p.ClientInfo != nil {
		s.log.InfoContext(ctx, "client connected", slog.String("client", p.ClientInfo.Name), slog.String("version", p.ClientInfo.Version))
	}

	info := s.info
	return reply(ctx, initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync:       protocol.TextDocumentSyncKindFull,
			TypeHierarchyProvider:  s.typeHierarchyCapability(),
			ExecuteCommandProvider: &executeCommandOptions{Commands: s.table.Names()},
		},
		ServerInfo: &info,
	}, nil)
}

// typeHierarchyCapability restricts the advertised capability to the
// documents registered providers select, when there are any.
func (s *Server) typeHierarchyCapability() any {
	var sel document.Selector
	for _, rs := range s.dispatcher.Registry().Selectors() {
		sel = append(sel, rs...)
	}
	if len(sel) == 0 {
		return typehierarchy.Options{}
	}
	return typehierarchy.RegistrationOptions{DocumentSelector: sel}
}

// prepare answers null when no provider applies to the document and the
// roots of the new model (or []) otherwise.
func (s *Server) prepare(ctx context.Context, p typehierarchy.PrepareParams) (any, error) {
	doc, err := s.docs.Open(ctx, p.TextDocument.URI)
	if err != nil {
		s.log.DebugContext(ctx, "prepare: document unavailable", slog.String("err", err.Error()))
		return nil, nil
	}
	if len(s.dispatcher.Registry().Ordered(doc)) == 0 {
		return nil, nil
	}
	m, err := s.dispatcher.CreateModel(ctx, doc.URI, p.Position)
	if err != nil || m == nil {
		return []typehierarchy.Item{}, nil
	}
	return m.Roots(), nil
}

// async runs fn off the read loop with a context cancelled by
// $/cancelRequest.
func (s *Server) async(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, fn func(context.Context) (any, error)) {
	key := idKey(req)
	rctx, cancel := context.WithCancel(ctx)
	if key != "" {
		s.mu.Lock()
		s.inflight[key] = cancel
		s.mu.Unlock()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if key != "" {
				s.mu.Lock()
				delete(s.inflight, key)
				s.mu.Unlock()
			}
			cancel()
		}()

		res, err := fn(rctx)
		if rctx.Err() != nil {
			_ = reply(ctx, nil, jsonrpc2.NewError(codeRequestCancelled, "request cancelled"))
			return
		}
		_ = reply(ctx, res, err)
	}()
}

func (s *Server) cancel(key string) {
	s.mu.Lock()
	cancel, ok := s.inflight[key]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Server) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.inflight {
		cancel()
	}
}

func idKey(req jsonrpc2.Request) string {
	call, ok := req.(*jsonrpc2.Call)
	if !ok {
		return ""
	}
	// ID marshals through a pointer receiver.
	id := call.ID()
	b, err := json.Marshal(&id)
	if err != nil {
		return ""
	}
	return string(b)
}

func requestID(req jsonrpc2.Request) string {
	if key := idKey(req); key != "" {
		return key
	}
	return uuid.NewString()
}

func invalidParams(err error) error {
	return jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error())
}
