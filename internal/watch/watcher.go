// Package watch monitors a bundle directory and reports batches of
// changed bundle source files.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/hochfrequenz/agent-deploy/internal/logging"
)

// ChangeCallback is called with the files changed since the last batch
type ChangeCallback func(changedFiles []string)

// Extensions are the file types that can affect bundle validation
var Extensions = []string{".yml", ".yaml", ".py", ".json", ".sql"}

// skipDirs are never watched
var skipDirs = map[string]bool{
	".git":         true,
	".databricks":  true,
	".venv":        true,
	"__pycache__":  true,
	"node_modules": true,
}

// BundleWatcher monitors a bundle root for source changes
type BundleWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	callback ChangeCallback
	debounce time.Duration
	log      logging.Logger

	// Debounce state
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	cancel context.CancelFunc
}

// NewBundleWatcher creates a watcher for root and every subdirectory
func NewBundleWatcher(root string, callback ChangeCallback) (*BundleWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	bw := &BundleWatcher{
		watcher:  watcher,
		root:     root,
		callback: callback,
		debounce: 500 * time.Millisecond, // Debounce rapid changes
		log:      logging.New("watch"),
		pending:  make(map[string]struct{}),
	}

	if err := bw.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}
	return bw, nil
}

// addTree adds dir and all its subdirectories
func (bw *BundleWatcher) addTree(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "watching %s", dir)
	}
	if !info.IsDir() {
		return errors.Errorf("watching %s: not a directory", dir)
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && skipDirs[info.Name()] {
			return filepath.SkipDir
		}
		return bw.watcher.Add(path)
	})
}

// Start begins watching for file changes
func (bw *BundleWatcher) Start(ctx context.Context) {
	ctx, bw.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-bw.watcher.Events:
				if !ok {
					return
				}
				bw.handleEvent(event)
			case err, ok := <-bw.watcher.Errors:
				if !ok {
					return
				}
				// Log error but continue watching
				bw.log.WithError(err).Warn("watch error")
			}
		}
	}()
}

// Stop stops watching for file changes
func (bw *BundleWatcher) Stop() {
	if bw.cancel != nil {
		bw.cancel()
	}
	bw.mu.Lock()
	if bw.timer != nil {
		bw.timer.Stop()
	}
	bw.mu.Unlock()
	bw.watcher.Close()
}

// SetDebounce sets the debounce duration for batching file changes
func (bw *BundleWatcher) SetDebounce(d time.Duration) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	bw.debounce = d
}

func (bw *BundleWatcher) handleEvent(event fsnotify.Event) {
	// New directories need their own watch
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDirs[info.Name()] {
				if err := bw.addTree(event.Name); err != nil {
					bw.log.WithError(err).Warn("watching new directory")
				}
			}
			return
		}
	}

	if !Relevant(event.Name) {
		return
	}

	// Only care about writes, creates, removes and renames
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	bw.mu.Lock()
	defer bw.mu.Unlock()

	bw.pending[event.Name] = struct{}{}

	// Reset or start debounce timer
	if bw.timer != nil {
		bw.timer.Stop()
	}
	bw.timer = time.AfterFunc(bw.debounce, bw.flush)
}

func (bw *BundleWatcher) flush() {
	bw.mu.Lock()
	// Copy pending state and clear
	pending := bw.pending
	bw.pending = make(map[string]struct{})
	bw.mu.Unlock()

	if bw.callback == nil || len(pending) == 0 {
		return
	}

	files := make([]string, 0, len(pending))
	for f := range pending {
		files = append(files, f)
	}
	sort.Strings(files)
	bw.callback(files)
}

// Relevant reports whether a change to path can affect the bundle
func Relevant(path string) bool {
	base := filepath.Base(path)
	// editor swap and backup files
	if strings.HasPrefix(base, ".#") || strings.HasSuffix(base, "~") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
