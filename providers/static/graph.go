// Package static provides a type hierarchy provider over a declared type
// graph. Graphs are YAML or JSON documents listing types and their direct
// supertypes:
//
//	language: go
//	nodes:
//	  - id: shape
//	    name: Shape
//	    kind: interface
//	    file: shape.go
//	    range: {start: {line: 2, character: 0}, end: {line: 5, character: 1}}
//	    selectionRange: {start: {line: 2, character: 5}, end: {line: 2, character: 10}}
//	  - id: circle
//	    name: Circle
//	    kind: class
//	    file: circle.go
//	    supers: [shape]
//	    ...
//
// A node names its document either with an absolute uri or with a file path
// relative to the graph file.
package static

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/goccy/go-yaml"
	"go.lsp.dev/protocol"
)

// Errors.
var (
	ErrDuplicateNode = errors.New("static: duplicate node id")
	ErrUnknownSuper  = errors.New("static: unknown supertype")
	ErrInvalidNode   = errors.New("static: invalid node")
)

// Kind is a symbol kind that decodes from a name ("class") or a number.
type Kind protocol.SymbolKind

var kindNames = map[string]protocol.SymbolKind{
	"file":          protocol.SymbolKindFile,
	"module":        protocol.SymbolKindModule,
	"namespace":     protocol.SymbolKindNamespace,
	"package":       protocol.SymbolKindPackage,
	"class":         protocol.SymbolKindClass,
	"method":        protocol.SymbolKindMethod,
	"property":      protocol.SymbolKindProperty,
	"field":         protocol.SymbolKindField,
	"constructor":   protocol.SymbolKindConstructor,
	"enum":          protocol.SymbolKindEnum,
	"interface":     protocol.SymbolKindInterface,
	"function":      protocol.SymbolKindFunction,
	"variable":      protocol.SymbolKindVariable,
	"constant":      protocol.SymbolKindConstant,
	"object":        protocol.SymbolKindObject,
	"enummember":    protocol.SymbolKindEnumMember,
	"struct":        protocol.SymbolKindStruct,
	"event":         protocol.SymbolKindEvent,
	"operator":      protocol.SymbolKindOperator,
	"typeparameter": protocol.SymbolKindTypeParameter,
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		v, ok := kindNames[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("static: unknown symbol kind %q", name)
		}
		*k = Kind(v)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("static: symbol kind must be a name or number: %s", b)
	}
	*k = Kind(n)
	return nil
}

// Node is one declared type.
type Node struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Kind           Kind           `json:"kind"`
	Detail         string         `json:"detail,omitempty"`
	Deprecated     bool           `json:"deprecated,omitempty"`
	URI            string         `json:"uri,omitempty"`
	File           string         `json:"file,omitempty"`
	Range          protocol.Range `json:"range"`
	SelectionRange protocol.Range `json:"selectionRange"`
	Supers         []string       `json:"supers,omitempty"`
}

type graphFile struct {
	Language string `json:"language,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	Nodes    []Node `json:"nodes"`
}

// Parse decodes a YAML or JSON graph. Relative node files resolve against
// baseDir.
func Parse(b []byte, baseDir string) (*Graph, error) {
	// JSON is a subset of YAML.
	j, err := yaml.YAMLToJSON(bytes.TrimSpace(b))
	if err != nil {
		return nil, fmt.Errorf("static: parse yaml: %w", err)
	}
	var f graphFile
	if err := json.Unmarshal(j, &f); err != nil {
		return nil, fmt.Errorf("static: parse graph: %w", err)
	}
	return build(f, baseDir)
}

// Load reads and parses a graph file.
func Load(path string) (*Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("static: read graph: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return Parse(b, filepath.Dir(abs))
}

func build(f graphFile, baseDir string) (*Graph, error) {
	g := &Graph{
		language: f.Language,
		pattern:  f.Pattern,
		nodes:    make(map[string]*Node, len(f.Nodes)),
		subs:     make(map[string][]string),
	}
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if n.ID == "" || n.Name == "" {
			return nil, fmt.Errorf("%w: node %d needs id and name", ErrInvalidNode, i)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		switch {
		case n.URI != "":
		case n.File != "":
			p := n.File
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			n.URI = string(document.FileURI(p))
		default:
			return nil, fmt.Errorf("%w: node %s needs uri or file", ErrInvalidNode, n.ID)
		}
		if n.SelectionRange == (protocol.Range{}) {
			n.SelectionRange = n.Range
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	for _, id := range g.order {
		for _, super := range g.nodes[id].Supers {
			if _, ok := g.nodes[super]; !ok {
				return nil, fmt.Errorf("%w: %s extends %s", ErrUnknownSuper, id, super)
			}
			g.subs[super] = append(g.subs[super], id)
		}
	}
	return g, nil
}
