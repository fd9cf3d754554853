// Package typehierarchy contains the wire types of the type hierarchy
// feature as exchanged between an editor, this server and the providers that
// answer hierarchy queries. It mirrors the Language Server Protocol 3.17
// shapes while reusing the primitives of go.lsp.dev/protocol (positions,
// ranges, symbol kinds) so that transports can marshal the values directly.
//
// The package carries no behaviour beyond light validation helpers: provider
// selection, session handling and command dispatch live in the hierarchy and
// commands packages.
//
// # Items
//
// Item is the unit of every answer. Data is an opaque payload chosen by the
// provider; it is preserved byte-for-byte when a client hands the item back in
// a later supertypes or subtypes request.
//
// # Method Names
//
// PrepareMethod, SupertypesMethod and SubtypesMethod name the three protocol
// requests. Command names used by the host-facing command surface are declared
// by the commands package.
package typehierarchy
