// Package sync mirrors local file edits into the sandbox. It watches a
// project directory and pushes writes through the session so the dev server
// inside the sandbox picks them up.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/sandpad/sandpad/internal/log"
)

// ignoredDirs are never watched or synced.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
}

// FileWriter pushes a single file into the running sandbox. Implemented by
// session.Manager and session.Session.
type FileWriter interface {
	WriteFile(ctx context.Context, path string, content []byte) error
}

// WatcherConfig is the configuration for the directory watcher.
type WatcherConfig struct {
	// Dir is the local project directory to mirror.
	Dir string
	// Writer receives the changed files.
	Writer FileWriter
	Logger log.Logger
}

func (c *WatcherConfig) defaults() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if c.Writer == nil {
		return fmt.Errorf("writer is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sync.Watcher", "dir": c.Dir})
	return nil
}

// Watcher mirrors writes under a local directory into the sandbox.
type Watcher struct {
	dir     string
	writer  FileWriter
	logger  log.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a new directory watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}

	return &Watcher{
		dir:     cfg.Dir,
		writer:  cfg.Writer,
		logger:  cfg.Logger,
		watcher: fsw,
	}, nil
}

// Run watches until the context is cancelled. Watches are added recursively,
// including directories created while running.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addRecursive(w.dir); err != nil {
		return fmt.Errorf("could not watch %s: %w", w.dir, err)
	}

	w.logger.Infof("Watching for local changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Errorf("Watcher error: %s", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Deleted or transient editor file, nothing to sync.
		return
	}

	if info.IsDir() {
		if event.Op.Has(fsnotify.Create) && !ignoredDirs[info.Name()] {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warningf("Could not watch new directory %s: %s", event.Name, err)
			}
		}
		return
	}

	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	content, err := os.ReadFile(event.Name)
	if err != nil {
		w.logger.Warningf("Could not read changed file %s: %s", rel, err)
		return
	}

	if err := w.writer.WriteFile(ctx, filepath.ToSlash(rel), content); err != nil {
		w.logger.Errorf("Could not sync %s: %s", rel, err)
		return
	}

	w.logger.Debugf("Synced %s", rel)
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}
