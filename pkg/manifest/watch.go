package manifest

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/wsds/pkg/log"
)

// DefaultDebounce is how long the watcher waits after the last change event
// before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a manifest whenever its file changes.
type Watcher struct {
	mu       sync.Mutex
	path     string
	debounce time.Duration
	onChange func(Manifest)
	logger   log.Logger
	timer    *time.Timer
	closed   bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Watch starts watching path. onChange runs on the watcher goroutine with
// every successfully reloaded manifest; invalid intermediate writes are
// logged and ignored. Call Close to stop.
func Watch(ctx context.Context, path string, logger log.Logger, onChange func(Manifest)) (*Watcher, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and sync tools replace files by rename,
	// which drops a watch placed on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   logger,
		cancel:   cancel,
	}

	w.wg.Add(1)
	go w.loop(watchCtx, fw)
	return w, nil
}

// Close stops the watcher and waits for its goroutine. Once Close returns,
// onChange is not called again; a reload in progress finishes first.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("manifest watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		// Held through onChange so Close waits for a reload in progress.
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed || ctx.Err() != nil {
			return
		}
		m, err := Load(w.path)
		if err != nil {
			w.logger.Warn("manifest reload failed", log.String("path", w.path), log.Err(err))
			return
		}
		w.logger.Info("manifest reloaded",
			log.String("path", w.path),
			log.Int("shards", len(m.ShardList)),
			log.Int("samples", m.TotalSize()))
		w.onChange(m)
	})
}
