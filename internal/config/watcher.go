package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nvlockd/nvlockd/internal/obslog"
	"github.com/nvlockd/nvlockd/internal/util"
	"github.com/nvlockd/nvlockd/internal/xerrors"
)

// ReloadFunc is invoked, debounced, whenever the watched config file changes
// on disk. It receives the freshly reloaded configuration.
type ReloadFunc func(*Scheduler) error

// Watcher watches a config file and debounces reload callbacks, the same
// shape as the teacher's am.ConfigWatcher.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload ReloadFunc

	mu    sync.Mutex
	timer *time.Timer
}

const debouncePeriod = 500 * time.Millisecond

// NewWatcher starts watching path; onReload fires after debouncePeriod of
// quiet following the last write.
func NewWatcher(path string, onReload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Wrap(err, "create fsnotify watcher")
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, xerrors.Wrapf(err, "watch config file %s", path)
	}
	w := &Watcher{path: path, watcher: fw, onReload: onReload}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	log := obslog.Named("config.watcher")
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || isBackupFile(ev.Name) {
				continue
			}
			log.Debugw("config file changed", "file", ev.Name, "op", ev.Op.String())
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debouncePeriod, func() {
		log := obslog.Named("config.watcher")
		cfg, err := Load(w.path)
		if err != nil {
			log.Errorw("config reload failed", "error", err)
			return
		}
		if err := w.onReload(cfg); err != nil {
			log.Errorw("config reload callback failed", "error", err)
		}
	})
}

func isBackupFile(name string) bool {
	return util.HasPrefixOrSuffix(name, "~") || util.HasPrefixOrSuffix(name, ".swp")
}
