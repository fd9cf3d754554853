package hierarchy

import "github.com/ggoodman/typehierarchy-go/typehierarchy"

// Result is the outcome of an expansion. A failed expansion has a non-nil
// Err and no items; an empty one has neither.
type Result struct {
	Items []typehierarchy.Item
	Err   error
}

// Failed reports whether the provider failed.
func (r Result) Failed() bool { return r.Err != nil }

// Empty reports whether there are no items, for whatever reason.
func (r Result) Empty() bool { return len(r.Items) == 0 }

// ItemsOrEmpty returns the items, or an empty non-nil slice when the
// expansion was empty or failed.
func (r Result) ItemsOrEmpty() []typehierarchy.Item {
	if len(r.Items) == 0 {
		return []typehierarchy.Item{}
	}
	return r.Items
}
