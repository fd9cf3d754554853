package document

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates disk-loaded documents of a Store when their files are
// written, removed or renamed. The parent directory of every loaded file is
// watched.
type Watcher struct {
	store *Store
	w     *fsnotify.Watcher
	log   *slog.Logger

	mu   sync.Mutex
	dirs map[string]struct{}
}

// NewWatcher attaches a watcher to store. Run must be called to process
// events.
func NewWatcher(store *Store, log *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("document: create watcher: %w", err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	dw := &Watcher{
		store: store,
		w:     w,
		log:   log,
		dirs:  make(map[string]struct{}),
	}
	store.setOnLoad(dw.track)
	return dw, nil
}

func (dw *Watcher) track(doc Document) {
	name, err := Filename(doc.URI)
	if err != nil {
		return
	}
	dir := filepath.Dir(name)

	dw.mu.Lock()
	defer dw.mu.Unlock()
	if _, ok := dw.dirs[dir]; ok {
		return
	}
	if err := dw.w.Add(dir); err != nil {
		dw.log.Debug("fsnotify add failed", slog.String("dir", dir), slog.String("err", err.Error()))
		return
	}
	dw.dirs[dir] = struct{}{}
}

// Run processes file events until ctx is done or the watcher is closed.
func (dw *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := ev.Name
			if abs, err := filepath.Abs(name); err == nil {
				name = abs
			}
			dw.store.Invalidate(FileURI(name))
		case err, ok := <-dw.w.Errors:
			if !ok {
				return
			}
			dw.log.Debug("fsnotify error", slog.String("err", err.Error()))
		}
	}
}

// Close stops watching and detaches from the store.
func (dw *Watcher) Close() error {
	dw.store.setOnLoad(nil)
	return dw.w.Close()
}
