package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"go.lsp.dev/protocol"
)

// Opener loads a document that is not open in the editor.
type Opener interface {
	Open(ctx context.Context, u protocol.DocumentURI) (Document, error)
}

// OpenerFunc adapts a function to an Opener.
type OpenerFunc func(ctx context.Context, u protocol.DocumentURI) (Document, error)

func (f OpenerFunc) Open(ctx context.Context, u protocol.DocumentURI) (Document, error) {
	return f(ctx, u)
}

// FileOpener reads file:// documents from the local file system and infers
// their language from the file extension.
type FileOpener struct{}

var _ Opener = FileOpener{}

func (FileOpener) Open(ctx context.Context, u protocol.DocumentURI) (Document, error) {
	name, err := Filename(u)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, u)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, u)
		}
		return Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	return Document{URI: u, LanguageID: LanguageForPath(name), Text: string(b)}, nil
}

// Store is a concurrency-safe table of documents. Documents opened by the
// editor take precedence over copies loaded through the Opener; the latter
// are kept until invalidated.
type Store struct {
	mu     sync.RWMutex
	open   map[protocol.DocumentURI]Document
	loaded map[protocol.DocumentURI]Document

	opener Opener
	log    *slog.Logger

	// onLoad is invoked with every document loaded through the opener.
	onLoad func(Document)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithOpener replaces the FileOpener fallback.
func WithOpener(o Opener) StoreOption {
	return func(s *Store) { s.opener = o }
}

// WithStoreLogger sets the logger used for load diagnostics.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// NewStore constructs an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		open:   make(map[protocol.DocumentURI]Document),
		loaded: make(map[protocol.DocumentURI]Document),
		opener: FileOpener{},
		log:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DidOpen records an editor-opened document.
func (s *Store) DidOpen(doc Document) {
	s.mu.Lock()
	s.open[doc.URI] = doc
	delete(s.loaded, doc.URI)
	s.mu.Unlock()
}

// DidChange replaces the full text of an open document. Changes to documents
// that were never opened are recorded as opens.
func (s *Store) DidChange(u protocol.DocumentURI, version int32, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.open[u]
	if !ok {
		doc = Document{URI: u, LanguageID: LanguageForPath(string(u))}
	}
	doc.Version = version
	doc.Text = text
	s.open[u] = doc
}

// DidClose forgets an editor-opened document.
func (s *Store) DidClose(u protocol.DocumentURI) {
	s.mu.Lock()
	delete(s.open, u)
	s.mu.Unlock()
}

// Invalidate drops a copy previously loaded through the opener. Open
// documents are unaffected.
func (s *Store) Invalidate(u protocol.DocumentURI) {
	s.mu.Lock()
	_, ok := s.loaded[u]
	delete(s.loaded, u)
	s.mu.Unlock()
	if ok {
		s.log.Debug("document invalidated", slog.String("uri", string(u)))
	}
}

// Get returns an open or previously loaded document without consulting the
// opener.
func (s *Store) Get(u protocol.DocumentURI) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.open[u]; ok {
		return doc, true
	}
	doc, ok := s.loaded[u]
	return doc, ok
}

// Open resolves a document by URI, loading it through the opener when it is
// neither open nor cached.
func (s *Store) Open(ctx context.Context, u protocol.DocumentURI) (Document, error) {
	if doc, ok := s.Get(u); ok {
		return doc, nil
	}
	doc, err := s.opener.Open(ctx, u)
	if err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	if open, ok := s.open[u]; ok {
		// Opened by the editor while we were reading.
		s.mu.Unlock()
		return open, nil
	}
	s.loaded[u] = doc
	onLoad := s.onLoad
	s.mu.Unlock()

	s.log.Debug("document loaded", slog.String("uri", string(u)), slog.String("language", doc.LanguageID))
	if onLoad != nil {
		onLoad(doc)
	}
	return doc, nil
}

func (s *Store) setOnLoad(fn func(Document)) {
	s.mu.Lock()
	s.onLoad = fn
	s.mu.Unlock()
}
