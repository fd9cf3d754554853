package document

import "testing"

func TestScoreMatcher(t *testing.T) {
	doc := Document{URI: "file:///src/pkg/shape.go", LanguageID: "go"}

	cases := []struct {
		name string
		sel  Selector
		want int
	}{
		{"exact language", Selector{{Language: "go"}}, ScoreExact},
		{"wildcard language", Selector{{Language: "*"}}, ScoreWildcard},
		{"other language", Selector{{Language: "java"}}, ScoreNone},
		{"exact scheme", Selector{{Scheme: "file"}}, ScoreExact},
		{"failing scheme vetoes language", Selector{{Language: "go", Scheme: "untitled"}}, ScoreNone},
		{"pattern match", Selector{{Pattern: "**/*.go"}}, ScoreExact},
		{"pattern miss", Selector{{Pattern: "**/*.ts"}}, ScoreNone},
		{"bare pattern", Selector{{Pattern: "**"}}, ScoreWildcard},
		{"wildcard language with pattern", Selector{{Language: "*", Pattern: "**/*.go"}}, ScoreExact},
		{"empty filter", Selector{{}}, ScoreNone},
		{"empty selector", nil, ScoreNone},
		{"best filter wins", Selector{{Language: "java"}, {Language: "*"}, {Scheme: "file"}}, ScoreExact},
	}

	var m ScoreMatcher
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.Match(tc.sel, doc); got != tc.want {
				t.Fatalf("Match(%+v) = %d, want %d", tc.sel, got, tc.want)
			}
		})
	}
}

func TestMatcherFunc(t *testing.T) {
	calls := 0
	m := MatcherFunc(func(sel Selector, doc Document) int {
		calls++
		return len(sel)
	})
	if got := m.Match(Selector{{}, {}}, Document{}); got != 2 {
		t.Fatalf("Match = %d, want 2", got)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDocumentSchemeAndPath(t *testing.T) {
	d := Document{URI: "untitled:Untitled-1"}
	if d.Scheme() != "untitled" {
		t.Fatalf("Scheme() = %q", d.Scheme())
	}
	if d.Path() != "Untitled-1" {
		t.Fatalf("Path() = %q", d.Path())
	}
	if LanguageForPath("/a/B.TS") != "typescript" {
		t.Fatalf("LanguageForPath uppercase ext = %q", LanguageForPath("/a/B.TS"))
	}
	if LanguageForPath("/a/README") != "plaintext" {
		t.Fatalf("LanguageForPath without ext = %q", LanguageForPath("/a/README"))
	}
}
