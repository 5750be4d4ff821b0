// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// DefaultSettleDelay is how long a file must stay quiet before it is
// ingested. Editors and copies emit several write events per file.
const DefaultSettleDelay = 500 * time.Millisecond

// FileIngester is the part of Manager a Watcher drives.
type FileIngester interface {
	IngestFile(ctx context.Context, path string) (IngestReport, error)
	HasDocument(ctx context.Context, source string) (bool, error)
}

// Watcher keeps a folder and the vector store in step. On start it ingests
// every supported file that is not yet indexed; afterwards it ingests files
// as they are created or rewritten. Deletions are ignored.
type Watcher struct {
	dir      string
	ingester FileIngester
	settle   time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	done    chan struct{}
}

// NewWatcher returns a Watcher for dir. It does not touch the file system
// until Run.
func NewWatcher(dir string, ingester FileIngester, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		ingester: ingester,
		settle:   DefaultSettleDelay,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
		ready:    make(chan string, 64),
		done:     make(chan struct{}),
	}
}

// SetSettleDelay overrides DefaultSettleDelay. Call before Run.
func (w *Watcher) SetSettleDelay(d time.Duration) { w.settle = d }

// Run performs the initial sync and then watches until ctx is cancelled.
// Ingestion failures are logged and never stop the watcher. Run must be
// called at most once.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.done)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeIngestWatchFailure, "creating watch dir",
			aegiserr.Field("dir", w.dir))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeIngestWatchFailure, "creating watcher")
	}
	defer func() { _ = fsw.Close() }()

	// Subscribe before the initial scan so that files landing during the
	// scan are not missed.
	if err := fsw.Add(w.dir); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeIngestWatchFailure, "watching dir",
			aegiserr.Field("dir", w.dir))
	}

	w.sync(ctx)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if KindOf(event.Name) == KindUnsupported {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(event.Name)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "dir", w.dir, "error", err)

		case path := <-w.ready:
			w.ingest(ctx, path)
		}
	}
}

// sync ingests files that exist on disk but not in the store.
func (w *Watcher) sync(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("initial scan failed", "dir", w.dir, "error", err)
		return
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || KindOf(entry.Name()) == KindUnsupported {
			continue
		}
		paths = append(paths, filepath.Join(w.dir, entry.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		indexed, err := w.ingester.HasDocument(ctx, filepath.Base(path))
		if err != nil {
			w.logger.Warn("checking index failed", "path", path, "error", err)
			continue
		}
		if !indexed {
			w.ingest(ctx, path)
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}
	if _, err := w.ingester.IngestFile(ctx, path); err != nil {
		w.logger.Error("watch ingest failed",
			"path", path,
			"kind", aegiserr.Kind(err),
			"error", err)
	}
}
