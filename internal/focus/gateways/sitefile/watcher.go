// Package sitefile keeps the stored site list in sync with a file on disk.
package sitefile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/sitelist"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Replacer stores a complete site list.
type Replacer interface {
	Replace(ctx context.Context, sites []string) error
}

// Options configures New.
type Options struct {
	Path     string
	Sites    Replacer
	Logger   log.Logger
	Debounce time.Duration
	// Parse reads the file; defaults to sitelist.ParseFile.
	Parse func(path string, logger log.Logger) ([]string, error)
}

// Watcher imports a site file into the store and re-imports it on change.
type Watcher struct {
	path     string
	sites    Replacer
	logger   log.Logger
	debounce time.Duration
	parse    func(string, log.Logger) ([]string, error)
}

// New returns a Watcher for opts.Path.
func New(opts Options) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(opts.Path),
		sites:    opts.Sites,
		logger:   opts.Logger,
		debounce: opts.Debounce,
		parse:    opts.Parse,
	}
	if w.logger == nil {
		w.logger = log.NewNoopLogger()
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.parse == nil {
		w.parse = sitelist.ParseFile
	}
	return w
}

// Import parses the file and replaces the stored list with its contents.
func (w *Watcher) Import(ctx context.Context) (int, error) {
	sites, err := w.parse(w.path, w.logger)
	if err != nil {
		return 0, fmt.Errorf("parse site file: %w", err)
	}
	if err := w.sites.Replace(ctx, sites); err != nil {
		return 0, err
	}
	w.logger.Info(map[string]any{"path": w.path, "sites": len(sites)}, "site file imported")
	return len(sites), nil
}

// Run watches the file's directory, so renames by editors are seen, and
// re-imports after each burst of changes. It returns when ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(map[string]any{"error": err, "path": w.path}, "site file watch error")
		case <-fire:
			fire = nil
			if _, err := w.Import(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Warn(map[string]any{"error": err, "path": w.path}, "site file re-import failed, keeping previous list")
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
