package document

import (
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
)

// Matcher scores how specifically a selector applies to a document. Scores
// are non-negative; 0 means the selector does not apply.
type Matcher interface {
	Match(sel Selector, doc Document) int
}

// MatcherFunc adapts a function to a Matcher.
type MatcherFunc func(sel Selector, doc Document) int

func (f MatcherFunc) Match(sel Selector, doc Document) int { return f(sel, doc) }

// Score values produced by ScoreMatcher.
const (
	ScoreNone     = 0
	ScoreWildcard = 5
	ScoreExact    = 10
)

// ScoreMatcher is the default Matcher. A filter scores the highest of its set
// constraints: an exact language or scheme is worth ScoreExact, a "*"
// constraint ScoreWildcard. Patterns are gitignore style and are matched
// against the URI path; a match is worth ScoreExact unless the pattern is a
// bare "*" or "**". A filter with no constraints, or with any failing
// constraint, scores ScoreNone. A selector scores its best filter.
//
// Compiled patterns are memoized; the zero value is ready to use.
type ScoreMatcher struct {
	mu       sync.Mutex
	patterns map[string]*ignore.GitIgnore
}

var _ Matcher = (*ScoreMatcher)(nil)

// Match implements Matcher.
func (m *ScoreMatcher) Match(sel Selector, doc Document) int {
	best := ScoreNone
	for _, f := range sel {
		if s := m.matchFilter(f, doc); s > best {
			best = s
		}
	}
	return best
}

func (m *ScoreMatcher) matchFilter(f Filter, doc Document) int {
	score := ScoreNone

	if f.Language != "" {
		switch f.Language {
		case doc.LanguageID:
			score = max(score, ScoreExact)
		case "*":
			score = max(score, ScoreWildcard)
		default:
			return ScoreNone
		}
	}

	if f.Scheme != "" {
		switch f.Scheme {
		case doc.Scheme():
			score = max(score, ScoreExact)
		case "*":
			score = max(score, ScoreWildcard)
		default:
			return ScoreNone
		}
	}

	if f.Pattern != "" {
		if f.Pattern == "*" || f.Pattern == "**" {
			score = max(score, ScoreWildcard)
		} else if m.compile(f.Pattern).MatchesPath(strings.TrimPrefix(doc.Path(), "/")) {
			score = max(score, ScoreExact)
		} else {
			return ScoreNone
		}
	}

	return score
}

func (m *ScoreMatcher) compile(pattern string) *ignore.GitIgnore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gi, ok := m.patterns[pattern]; ok {
		return gi
	}
	if m.patterns == nil {
		m.patterns = make(map[string]*ignore.GitIgnore)
	}
	gi := ignore.CompileIgnoreLines(pattern)
	m.patterns[pattern] = gi
	return gi
}
