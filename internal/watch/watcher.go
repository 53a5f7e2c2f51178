// Package watch hot-reloads the rule file without disturbing an
// in-flight scan cycle.
package watch

import (
	"fmt"
	"path/filepath"
	"time"

	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"dealwatch/internal/metrics"
)

// defaultDebounce is the quiet period after the last file event before
// a reload is attempted. Editors tend to emit bursts of writes and
// renames for a single save.
const defaultDebounce = time.Second

// ReloadFunc re-reads and compiles the rule source and swaps the
// active set on success. An error keeps the previous set active.
type ReloadFunc func() error

// Watcher observes the rule file and debounces change notifications.
// It never blocks the crawl loop and never triggers a scan cycle.
type Watcher struct {
	path     string
	debounce time.Duration
	reload   ReloadFunc
	logger   *zap.Logger
}

// New builds a Watcher for the rule file at path.
func New(path string, reload ReloadFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		reload:   reload,
		logger:   logger,
	}
}

// SetDebounce overrides the quiet period. Intended for tests.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Run watches until the context is done. The parent directory is
// watched rather than the file itself so atomic save-via-rename does
// not drop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching rule file", zap.String("path", w.path))

	// Two states: idle (timer nil) and pending (timer armed). Any
	// relevant event while pending restarts the quiet period.
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fs watcher error", zap.Error(err))

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.reload(); err != nil {
				metrics.IncReloads("error")
				w.logger.Error("rule reload failed, keeping previous rules", zap.Error(err))
				continue
			}
			metrics.IncReloads("ok")
			w.logger.Info("rule set reloaded")
		}
	}
}
