// Package watch re-runs validation whenever Python sources change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceWindow = 500 * time.Millisecond

// Handler is invoked with the batch of changed files after each quiet period.
type Handler func(ctx context.Context, changed []string)

// Watcher observes a source tree for .py changes.
type Watcher struct {
	sourceDir string
	logger    *zap.Logger
}

// New builds a watcher over sourceDir.
func New(sourceDir string, logger *zap.Logger) *Watcher {
	return &Watcher{sourceDir: sourceDir, logger: logger}
}

// Run blocks until ctx is done, calling handler after each debounced burst of
// changes. Directories created while running are watched too.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := addRecursive(fsw, w.sourceDir); err != nil {
		return err
	}
	w.logger.Info("watching for changes", zap.String("dir", w.sourceDir))

	pending := map[string]bool{}
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				// New directories need their own watch.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(fsw, event.Name)
				}
			}
			if !strings.HasSuffix(event.Name, ".py") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			timerC = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timerC:
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			pending = map[string]bool{}
			timerC = nil
			w.logger.Debug("changes settled", zap.Int("files", len(changed)))
			handler(ctx, changed)
		}
	}
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || d.Name() == "__pycache__" {
				return filepath.SkipDir
			}
			return fsw.Add(path)
		}
		return nil
	})
}
