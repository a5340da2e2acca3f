package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sparcd-io/cli/pkg/uploader"
)

// Watcher monitors a staging root for camera-trap batches. Every
// first-level subfolder is one batch; once a batch stops changing for
// the debounce window, the batch callback fires with its path.
type Watcher struct {
	root     string
	notify   uploader.Notifier
	onBatch  func(folder string)
	debounce *DebounceQueue

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	watched map[string]bool
	closed  bool
}

// New creates a Watcher over the given staging root.
func New(root string, debounce time.Duration, notify uploader.Notifier, onBatch func(folder string)) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %q: %w", root, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		root:     absRoot,
		notify:   notify,
		onBatch:  onBatch,
		debounce: NewDebounceQueue(debounce),
		watcher:  fsw,
		watched:  make(map[string]bool),
	}, nil
}

// Start watches the root and all current subdirectories and begins
// processing events.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.eventLoop()
	return nil
}

func (w *Watcher) addRecursive(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if info.IsDir() {
			return w.addDirectory(path)
		}
		return nil
	})
}

func (w *Watcher) addDirectory(dirPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dirPath] {
		return nil
	}
	if err := w.watcher.Add(dirPath); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dirPath, err)
	}
	w.watched[dirPath] = true
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.notify.Warnf("watch error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Deleted between event and stat.
		return
	}

	if info.IsDir() {
		if err := w.addDirectory(event.Name); err != nil {
			w.notify.Warnf("failed to watch new directory %s: %v", event.Name, err)
		}
		// A new directory counts as activity for its batch too.
	}

	batch, ok := w.batchFolder(event.Name)
	if !ok {
		return
	}
	w.debounce.Add(batch, w.onBatch)
}

// batchFolder maps an event path to its first-level batch folder under
// the root. Events on the root itself carry no batch.
func (w *Watcher) batchFolder(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	first := strings.Split(filepath.ToSlash(rel), "/")[0]
	if first == "" || strings.HasPrefix(first, ".") {
		return "", false
	}
	return filepath.Join(w.root, first), true
}

// Pending returns the number of batches waiting out their debounce.
func (w *Watcher) Pending() int {
	return w.debounce.Pending()
}

// Close stops the watcher and cancels pending debounce timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.debounce.Stop()
	return w.watcher.Close()
}
