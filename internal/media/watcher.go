package media

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cwarden/memories/internal/logging"
)

// Watcher calls onChange once a burst of file-system events in the watched
// directories has settled.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dirs     map[string]bool
	onChange func()
	delay    time.Duration

	mu        sync.Mutex
	timer     *time.Timer
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWatcher(onChange func()) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  watcher,
		dirs:     make(map[string]bool),
		onChange: onChange,
		delay:    100 * time.Millisecond,
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.watch()
	return w, nil
}

func (w *Watcher) AddDir(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[absPath] {
		return nil // Already watching
	}

	if err := w.watcher.Add(absPath); err != nil {
		return err
	}

	w.dirs[absPath] = true
	return nil
}

func (w *Watcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Base(event.Name)[0] == '.' {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("library watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// schedule debounces rapid events into a single callback.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		select {
		case <-w.done:
			return
		default:
		}
		if w.onChange != nil {
			w.onChange()
		}
	})
}

// Close stops watching. Safe to call repeatedly.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}
