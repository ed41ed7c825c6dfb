package catalog

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ShayCichocki/quoteflow/internal/logging"
	"github.com/ShayCichocki/quoteflow/internal/metrics"
)

// Watcher serves a catalog file and reloads it when the file changes.
// Readers always see a complete tree: a reload that fails to parse keeps the
// previous tree.
type Watcher struct {
	path    string
	current atomic.Pointer[Tree]

	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
	onReload func(*Tree)

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l logrus.FieldLogger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithWatcherMetrics records reloads.
func WithWatcherMetrics(m *metrics.Metrics) WatcherOption {
	return func(w *Watcher) { w.metrics = m }
}

// WithReloadHook is called after every successful reload.
func WithReloadHook(fn func(*Tree)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher loads path and starts watching it. If the file system watcher
// cannot be started the catalog is still served, without hot reload.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:   path,
		logger: logging.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	tree, err := Load(path)
	if err != nil {
		return nil, err
	}
	w.current.Store(tree)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.WithError(err).Warn("catalog hot reload disabled")
		return w, nil
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		w.logger.WithError(err).Warn("catalog hot reload disabled")
		return w, nil
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.watch()

	return w, nil
}

func (w *Watcher) watch() {
	defer w.wg.Done()
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0 || event.Op&fsnotify.Rename != 0 {
				if err := w.Reload(); err != nil {
					w.logger.WithError(err).WithField("path", w.path).Warn("catalog reload failed, keeping previous version")
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Debug("catalog watcher error")
		}
	}
}

// Reload re-reads the file. On failure the current tree is kept.
func (w *Watcher) Reload() error {
	tree, err := Load(w.path)
	w.metrics.RecordCatalogReload(err == nil)
	if err != nil {
		return err
	}
	w.current.Store(tree)
	w.logger.WithField("variants", tree.Len()).Info("catalog reloaded")
	if w.onReload != nil {
		w.onReload(tree)
	}
	return nil
}

// Tree returns the current tree.
func (w *Watcher) Tree() *Tree {
	return w.current.Load()
}

// Lookup implements Catalog against the current tree.
func (w *Watcher) Lookup(path []string) (Node, error) {
	return w.Tree().Lookup(path)
}

// Snapshot implements Snapshotter.
func (w *Watcher) Snapshot() Catalog {
	return w.Tree()
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			if cerr := w.watcher.Close(); cerr != nil {
				err = fmt.Errorf("close catalog watcher: %w", cerr)
			}
		}
		w.wg.Wait()
	})
	return err
}
