// Package hierarchy selects type hierarchy providers for documents and runs
// browsing sessions against them.
//
// # Registry
//
// A Registry holds (selector, provider) registrations. Ordered scores every
// registration against a document with a document.Matcher and returns the
// applicable providers, best first. Ties go to the most recent registration.
// Scores are reused while consecutive lookups concern the same document
// identity (uri and language). Register drops the reused scores, so a
// provider registered after a lookup takes part in the next lookup even for
// the same identity instead of staying unscored until the identity changes.
//
// Default returns the process-wide registry shared by every feature that
// registers providers.
//
// # Models
//
// CreateModel asks the highest ranked provider, and only that provider, to
// prepare the hierarchy at a position. A non-empty answer becomes an
// immutable Model whose ID is the concatenation of its root URIs, and the
// registry's current model pointer moves to it. The pointer always reflects
// the most recently completed prepare.
//
// Expansion never fails from the caller's point of view: provider errors and
// panics are contained in a Result and collapse to an empty slice through
// ResolveSupertypes and ResolveSubtypes.
package hierarchy
