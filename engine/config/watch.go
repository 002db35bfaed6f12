package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/fsnotify/fsnotify"
)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	fs       *fsnotify.Watcher
	path     string
	last     Config
	onChange func(Config)

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Watcher reloads a config file when it changes.
type Watcher interface {
	// Close stops watching and waits for the event goroutine to exit.
	Close() error
}

var _ Watcher = &watcher{}

// Watch reloads path on every write or re-creation and hands each new, valid configuration
// that differs from the previous one to onChange. Invalid files are logged and ignored. The
// parent directory is watched so editors that replace the file are followed.
//
// Parameters:
//   - path: the config file
//   - initial: the configuration currently in effect
//   - onChange: called on the watcher goroutine with the new configuration
//
// Returns:
//   - Watcher: the watcher, to be closed by the caller
//   - error: an error if the directory cannot be watched
func Watch(path string, initial Config, onChange func(Config)) (Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}

	w := &watcher{
		fs:       fsw,
		path:     abs,
		last:     initial,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || !e.Op.Has(fsnotify.Write) && !e.Op.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", "err", err)
		case <-w.done:
			return
		}
	}
}

func (w *watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logger.Warn("ignoring config change", "path", w.path, "err", err)
		return
	}
	if cfg == w.last {
		return
	}
	w.last = cfg
	logger.Info("config reloaded", "path", w.path)
	w.onChange(cfg)
}

func (w *watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}
