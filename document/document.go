// Package document models the text documents hierarchy queries are asked
// against and the selectors providers register for.
//
// A Matcher scores how well a Selector applies to a Document. The registry in
// package hierarchy treats selectors as opaque and relies entirely on the
// Matcher it was built with; ScoreMatcher is the default.
//
// Store keeps the documents an editor has opened and falls back to an Opener
// for everything else. Watcher drops disk-backed copies when the underlying
// file changes.
package document

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// Document is a text document snapshot.
type Document struct {
	URI        protocol.DocumentURI `json:"uri"`
	LanguageID string               `json:"languageId"`
	Version    int32                `json:"version"`
	Text       string               `json:"text,omitempty"`
}

// Identity is the part of a document that determines provider applicability.
type Identity struct {
	URI        protocol.DocumentURI
	LanguageID string
}

// Identity returns the (uri, language) pair of the document.
func (d Document) Identity() Identity {
	return Identity{URI: d.URI, LanguageID: d.LanguageID}
}

// Scheme returns the URI scheme of the document, or "" when the URI cannot be
// parsed.
func (d Document) Scheme() string {
	u, err := url.Parse(string(d.URI))
	if err != nil {
		return ""
	}
	return u.Scheme
}

// Path returns the slash separated path component of the document URI.
func (d Document) Path() string {
	u, err := url.Parse(string(d.URI))
	if err != nil {
		return ""
	}
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Path
}

// Filter describes a set of documents. Every field that is set must match.
type Filter struct {
	Language string `json:"language,omitempty"`
	Scheme   string `json:"scheme,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

// Selector is a disjunction of filters.
type Selector []Filter

// Errors.
var (
	ErrDocumentNotFound = errors.New("document: not found")
	ErrNotFileURI       = errors.New("document: not a file uri")
)

// FileURI converts an OS path to a file:// document URI.
func FileURI(filename string) protocol.DocumentURI {
	return protocol.DocumentURI(uri.File(filename))
}

// Filename converts a file:// document URI to an OS path.
func Filename(u protocol.DocumentURI) (string, error) {
	if !strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return "", ErrNotFileURI
	}
	return uri.URI(u).Filename(), nil
}

var languageByExt = map[string]string{
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".go":    "go",
	".java":  "java",
	".js":    "javascript",
	".jsx":   "javascriptreact",
	".kt":    "kotlin",
	".py":    "python",
	".rb":    "ruby",
	".rs":    "rust",
	".scala": "scala",
	".swift": "swift",
	".ts":    "typescript",
	".tsx":   "typescriptreact",
}

// LanguageForPath infers a language identifier from a file extension. Unknown
// extensions map to "plaintext".
func LanguageForPath(p string) string {
	if lang, ok := languageByExt[strings.ToLower(path.Ext(p))]; ok {
		return lang
	}
	return "plaintext"
}
