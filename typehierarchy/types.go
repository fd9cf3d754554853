package typehierarchy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ggoodman/typehierarchy-go/document"
	"go.lsp.dev/protocol"
)

// Item is a single node of a type hierarchy.
type Item struct {
	Name           string               `json:"name"`
	Kind           protocol.SymbolKind  `json:"kind"`
	Tags           []protocol.SymbolTag `json:"tags,omitempty"`
	Detail         string               `json:"detail,omitempty"`
	URI            protocol.DocumentURI `json:"uri"`
	Range          protocol.Range       `json:"range"`
	SelectionRange protocol.Range       `json:"selectionRange"`
	Data           json.RawMessage      `json:"data,omitempty"`
}

// Item validation errors.
var (
	ErrEmptyName          = errors.New("typehierarchy: item name is empty")
	ErrEmptyURI           = errors.New("typehierarchy: item uri is empty")
	ErrSelectionNotInside = errors.New("typehierarchy: selectionRange is not contained in range")
)

// Validate reports the first structural problem with the item. Providers may
// call it on their own output; the server never rejects provider results.
func (it Item) Validate() error {
	if it.Name == "" {
		return ErrEmptyName
	}
	if it.URI == "" {
		return ErrEmptyURI
	}
	if !Contains(it.Range, it.SelectionRange) {
		return fmt.Errorf("%w: %s not in %s", ErrSelectionNotInside, formatRange(it.SelectionRange), formatRange(it.Range))
	}
	return nil
}

// IsDeprecated reports whether the item carries the deprecated tag.
func (it Item) IsDeprecated() bool {
	for _, t := range it.Tags {
		if t == protocol.SymbolTagDeprecated {
			return true
		}
	}
	return false
}

// Before reports whether a sorts strictly before b.
func Before(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

// Contains reports whether inner lies within outer, bounds inclusive.
func Contains(outer, inner protocol.Range) bool {
	return !Before(inner.Start, outer.Start) && !Before(outer.End, inner.End)
}

// ContainsPosition reports whether pos lies within r, bounds inclusive.
func ContainsPosition(r protocol.Range, pos protocol.Position) bool {
	return Contains(r, protocol.Range{Start: pos, End: pos})
}

func formatRange(r protocol.Range) string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
}

// Capabilities

// ClientCapabilities is the client side of the type hierarchy capability.
type ClientCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// Options is the static server capability.
type Options struct {
	WorkDoneProgress bool `json:"workDoneProgress,omitempty"`
}

// RegistrationOptions advertises the capability restricted to a set of
// documents. ID may be used to unregister a dynamic registration.
type RegistrationOptions struct {
	DocumentSelector document.Selector `json:"documentSelector"`
	Options
	ID string `json:"id,omitempty"`
}
