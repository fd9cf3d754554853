package typehierarchy

import "go.lsp.dev/protocol"

// Method is a JSON-RPC method name of the type hierarchy feature.
type Method string

// Type hierarchy request methods.
const (
	PrepareMethod    Method = "textDocument/prepareTypeHierarchy"
	SupertypesMethod Method = "typeHierarchy/supertypes"
	SubtypesMethod   Method = "typeHierarchy/subtypes"
)

// PrepareParams resolves the item at a text document position.
type PrepareParams struct {
	protocol.TextDocumentPositionParams
	protocol.WorkDoneProgressParams
}

// SupertypesParams asks for the supertypes of Item.
type SupertypesParams struct {
	Item Item `json:"item"`
	protocol.WorkDoneProgressParams
	protocol.PartialResultParams
}

// SubtypesParams asks for the subtypes of Item.
type SubtypesParams struct {
	Item Item `json:"item"`
	protocol.WorkDoneProgressParams
	protocol.PartialResultParams
}
