package static

import (
	"context"
	"encoding/json"

	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/hierarchy"
	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"go.lsp.dev/protocol"
)

// Graph is an immutable type graph. It implements hierarchy.Provider.
type Graph struct {
	language string
	pattern  string
	nodes    map[string]*Node
	order    []string
	subs     map[string][]string
}

var _ hierarchy.Provider = (*Graph)(nil)

type itemData struct {
	Node string `json:"node"`
}

// Selector returns the documents the graph declares itself for. Without a
// language or pattern the graph applies to every file document.
func (g *Graph) Selector() document.Selector {
	if g.language == "" && g.pattern == "" {
		return document.Selector{{Scheme: "file"}}
	}
	return document.Selector{{Language: g.language, Pattern: g.pattern}}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

func (g *Graph) item(n *Node) typehierarchy.Item {
	data, _ := json.Marshal(itemData{Node: n.ID})
	it := typehierarchy.Item{
		Name:           n.Name,
		Kind:           protocol.SymbolKind(n.Kind),
		Detail:         n.Detail,
		URI:            protocol.DocumentURI(n.URI),
		Range:          n.Range,
		SelectionRange: n.SelectionRange,
		Data:           data,
	}
	if n.Deprecated {
		it.Tags = []protocol.SymbolTag{protocol.SymbolTagDeprecated}
	}
	return it
}

// PrepareTypeHierarchy returns the innermost node of doc whose range holds
// pos.
func (g *Graph) PrepareTypeHierarchy(ctx context.Context, doc document.Document, pos protocol.Position) ([]typehierarchy.Item, error) {
	var best *Node
	for _, id := range g.order {
		n := g.nodes[id]
		if protocol.DocumentURI(n.URI) != doc.URI || !typehierarchy.ContainsPosition(n.Range, pos) {
			continue
		}
		if best == nil || typehierarchy.Contains(best.Range, n.Range) {
			best = n
		}
	}
	if best == nil {
		return nil, nil
	}
	return []typehierarchy.Item{g.item(best)}, nil
}

// ProvideSupertypes returns the declared supertypes of item.
func (g *Graph) ProvideSupertypes(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error) {
	n := g.resolve(item)
	if n == nil {
		return nil, nil
	}
	return g.items(n.Supers), nil
}

// ProvideSubtypes returns the nodes that declare item as a supertype.
func (g *Graph) ProvideSubtypes(ctx context.Context, item typehierarchy.Item) ([]typehierarchy.Item, error) {
	n := g.resolve(item)
	if n == nil {
		return nil, nil
	}
	return g.items(g.subs[n.ID]), nil
}

func (g *Graph) items(ids []string) []typehierarchy.Item {
	out := make([]typehierarchy.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.item(g.nodes[id]))
	}
	return out
}

// resolve finds the node of item by its data, falling back to uri and name
// for items that did not originate here.
func (g *Graph) resolve(item typehierarchy.Item) *Node {
	var d itemData
	if len(item.Data) > 0 && json.Unmarshal(item.Data, &d) == nil && d.Node != "" {
		if n, ok := g.nodes[d.Node]; ok {
			return n
		}
	}
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Name == item.Name && protocol.DocumentURI(n.URI) == item.URI {
			return n
		}
	}
	return nil
}
