package typehierarchy

import (
	"encoding/json"
	"errors"
	"testing"

	"go.lsp.dev/protocol"
)

func rng(sl, sc, el, ec uint32) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: sl, Character: sc},
		End:   protocol.Position{Line: el, Character: ec},
	}
}

func TestItemValidate(t *testing.T) {
	valid := Item{
		Name:           "Shape",
		Kind:           protocol.SymbolKindInterface,
		URI:            "file:///shape.go",
		Range:          rng(2, 0, 10, 1),
		SelectionRange: rng(2, 5, 2, 10),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Item)
		want   error
	}{
		{"no name", func(it *Item) { it.Name = "" }, ErrEmptyName},
		{"no uri", func(it *Item) { it.URI = "" }, ErrEmptyURI},
		{"selection outside", func(it *Item) { it.SelectionRange = rng(1, 0, 2, 3) }, ErrSelectionNotInside},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := valid
			tc.mutate(&it)
			if err := it.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestItemWireShape(t *testing.T) {
	raw := `{"name":"Circle","kind":5,"tags":[1],"uri":"file:///circle.go",` +
		`"range":{"start":{"line":1,"character":0},"end":{"line":4,"character":1}},` +
		`"selectionRange":{"start":{"line":1,"character":5},"end":{"line":1,"character":11}},` +
		`"data":{"node":"circle","nested":[1,2]}}`

	var it Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.Kind != protocol.SymbolKindClass || !it.IsDeprecated() {
		t.Fatalf("decoded item = %+v", it)
	}
	if string(it.Data) != `{"node":"circle","nested":[1,2]}` {
		t.Fatalf("data = %s", it.Data)
	}

	out, err := json.Marshal(it)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if string(m["data"]) != `{"node":"circle","nested":[1,2]}` {
		t.Fatalf("data not echoed verbatim: %s", m["data"])
	}
	if _, ok := m["detail"]; ok {
		t.Fatal("empty detail serialized")
	}
}

func TestContainsPosition(t *testing.T) {
	r := rng(1, 4, 3, 0)
	if !ContainsPosition(r, protocol.Position{Line: 1, Character: 4}) {
		t.Fatal("start bound not contained")
	}
	if !ContainsPosition(r, protocol.Position{Line: 2, Character: 99}) {
		t.Fatal("middle line not contained")
	}
	if ContainsPosition(r, protocol.Position{Line: 3, Character: 1}) {
		t.Fatal("position past end contained")
	}
	if ContainsPosition(r, protocol.Position{Line: 1, Character: 3}) {
		t.Fatal("position before start contained")
	}
}
