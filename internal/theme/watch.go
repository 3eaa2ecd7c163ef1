package theme

import (
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const debounceDelay = 150 * time.Millisecond

// Watcher re-detects the palette when a terminal config changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	debounce *time.Timer
	onChange func()
	done     chan struct{}
	stop     sync.Once
}

// NewWatcher watches the terminal config directories under the user's home.
// Directories that don't exist are skipped.
func NewWatcher(onChange func()) (*Watcher, error) {
	home, _ := os.UserHomeDir()
	if home == "" {
		return watchPaths(nil, onChange)
	}
	return watchPaths(watchDirs(home), onChange)
}

func watchPaths(dirs []string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, d := range dirs {
		if _, err := os.Stat(d); err != nil {
			continue
		}
		if err := fsw.Add(d); err != nil {
			log.WithFields(log.Fields{"dir": d, "err": err}).Debug("Could not watch theme dir")
		}
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleRefresh()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithField("err", err).Debug("Theme watcher error")
		case <-w.done:
			return
		}
	}
}

// scheduleRefresh collapses bursts of writes into one refresh.
func (w *Watcher) scheduleRefresh() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceDelay, func() {
		Refresh()
		if w.onChange != nil {
			w.onChange()
		}
	})
}

// Stop closes the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		if w.debounce != nil {
			w.debounce.Stop()
		}
		w.mu.Unlock()
	})
}
