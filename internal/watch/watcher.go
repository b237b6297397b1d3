// Package watch flags manifest entries for reindexing when their source
// files change on disk between explicit index runs.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/fillvault/mcp-doc-indexer/internal/docindex"
	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// Watcher observes the documents directory and marks changed files
// needsReindex in the manifest. Removals are ignored: dropping manifest
// entries stays an explicit host action.
type Watcher struct {
	fsw   *fsnotify.Watcher
	store *store.ManifestStore
	dir   string
}

// New creates a watcher over dir.
func New(dir string, st *store.ManifestStore) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("cannot watch %s: %w", dir, err)
	}
	return &Watcher{fsw: fsw, store: st, dir: dir}, nil
}

// Run processes events until the context is cancelled or the underlying
// watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error on %s: %v", w.dir, err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	name := filepath.Base(event.Name)
	if docindex.DetectType(name) == "" {
		return
	}
	if err := w.store.MarkNeedsReindex(name); err != nil {
		log.Printf("cannot flag %s for reindex: %v", name, err)
	}
}
