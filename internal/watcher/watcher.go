// Package watcher observes the data directory for stage databases
// changed outside this process (restored backups, manual sqlite
// edits, a second tool touching the files). Detected changes evict
// the engine's cached projections so the next read replays from disk.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/alucardeht/futures-mcp/internal/futures"
	"github.com/alucardeht/futures-mcp/internal/logger"
	"github.com/alucardeht/futures-mcp/internal/store"
)

var log = logger.ForComponent("watcher")

// Invalidator is the slice of the engine the watcher needs.
type Invalidator interface {
	InvalidateProjection(ideaID string, stage futures.Stage)
}

type Watcher struct {
	config      Config
	dataDir     string
	invalidator Invalidator

	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex
	debouncer   *Debouncer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func New(config Config, dataDir string, invalidator Invalidator) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:      config,
		dataDir:     dataDir,
		invalidator: invalidator,
		fsWatcher:   fsWatcher,
	}
	w.debouncer = NewDebouncer(config.DebounceWindow, config.MaxBatchSize, w.onFlush)
	return w, nil
}

// Start watches the data dir and every existing idea subdirectory.
// Idea directories created later are picked up from create events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	if err := w.watchPath(w.dataDir); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.dataDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dataDir, entry.Name())
		if err := w.watchPath(path); err != nil {
			log.Warn("cannot watch idea dir", "path", path, "error", err)
		}
	}

	log.Info("watching data dir", "path", w.dataDir)
	go w.handleEvents(ctx)
	return nil
}

func (w *Watcher) watchPath(path string) error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Add(path)
}

func (w *Watcher) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watchPath(event.Name); err != nil {
						log.Warn("cannot watch new idea dir", "path", event.Name, "error", err)
					}
					continue
				}
			}

			if fe := w.convertEvent(event); fe != nil {
				w.debouncer.Add(*fe)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) *FileEvent {
	if w.shouldIgnore(event.Name) {
		return nil
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return nil
	}

	return &FileEvent{
		Path:      event.Name,
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

func (w *Watcher) onFlush(events []FileEvent) {
	kind := ClassifyBatch(events)
	if kind == BatchBulk {
		log.Warn("bulk change in data dir, projections will replay from disk", "count", len(events))
	}

	for _, event := range events {
		ideaID, stage, ok := store.ParseStagePath(w.dataDir, event.Path)
		if !ok {
			log.Debug("unrecognized file in data dir", "path", event.Path, "op", event.Type)
			continue
		}

		w.invalidator.InvalidateProjection(ideaID, stage)
		log.Info("stage db changed on disk", "idea_id", ideaID, "stage", stage, "op", event.Type)
	}
}

func (w *Watcher) shouldIgnore(path string) bool {
	if filepath.Base(path) == "ideas.db" {
		return false
	}
	for _, pattern := range w.config.IgnorePatterns {
		if match, _ := doublestar.Match(pattern, filepath.ToSlash(path)); match {
			return true
		}
	}
	return false
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.debouncer.Stop()

	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Close()
}
