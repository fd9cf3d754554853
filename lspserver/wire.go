package lspserver

import (
	"encoding/json"

	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Methods handled here that go.lsp.dev/protocol does not name.
const cancelRequestMethod = "$/cancelRequest"

// LSP error codes outside the JSON-RPC range.
const (
	codeServerNotInitialized jsonrpc2.Code = -32002
	codeRequestCancelled     jsonrpc2.Code = -32800
)

type initializeParams struct {
	ProcessID  *int32 `json:"processId"`
	ClientInfo *struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`
	} `json:"clientInfo,omitempty"`
	Capabilities struct {
		TextDocument struct {
			TypeHierarchy *typehierarchy.ClientCapabilities `json:"typeHierarchy,omitempty"`
		} `json:"textDocument"`
	} `json:"capabilities"`
}

type executeCommandOptions struct {
	Commands []string `json:"commands"`
}

type serverCapabilities struct {
	TextDocumentSync       protocol.TextDocumentSyncKind `json:"textDocumentSync"`
	TypeHierarchyProvider  any                           `json:"typeHierarchyProvider"`
	ExecuteCommandProvider *executeCommandOptions        `json:"executeCommandProvider,omitempty"`
}

type initializeResult struct {
	Capabilities serverCapabilities   `json:"capabilities"`
	ServerInfo   *protocol.ServerInfo `json:"serverInfo,omitempty"`
}

type executeCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}

type cancelParams struct {
	ID json.RawMessage `json:"id"`
}
