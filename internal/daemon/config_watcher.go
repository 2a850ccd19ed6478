package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
)

const defaultDebounce = 2 * time.Second

// ConfigWatcher calls onChange after the configuration file settles. Editors
// often write a file in several steps, so events are debounced.
type ConfigWatcher struct {
	configPath string
	onChange   func(context.Context) error
	watcher    *fsnotify.Watcher
	debounce   time.Duration

	mu       sync.Mutex
	stopped  bool
	stopChan chan struct{}
	reload   chan struct{}
	wg       sync.WaitGroup
}

// NewConfigWatcher creates a watcher for configPath. A debounce of zero uses
// the default.
func NewConfigWatcher(configPath string, debounce time.Duration, onChange func(context.Context) error) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve config path").
			WithContext("path", configPath).Build()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &ConfigWatcher{
		configPath: absPath,
		onChange:   onChange,
		watcher:    w,
		debounce:   debounce,
		stopChan:   make(chan struct{}),
		reload:     make(chan struct{}, 1),
	}, nil
}

// Start watches the directory holding the file; renames by atomic-save
// editors would drop a watch on the file itself.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(dir); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch config directory").
			WithContext("path", dir).Build()
	}
	slog.Info("Starting configuration watcher", logfields.Path(cw.configPath))

	cw.wg.Add(2)
	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop ends both loops and closes the watcher. It is safe to call twice.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	if cw.stopped {
		cw.mu.Unlock()
		return nil
	}
	cw.stopped = true
	close(cw.stopChan)
	cw.mu.Unlock()

	err := cw.watcher.Close()
	cw.wg.Wait()
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to close file watcher").Build()
	}
	return nil
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	defer cw.wg.Done()
	name := filepath.Base(cw.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				slog.Debug("Config file change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				cw.trigger()
			case ev.Has(fsnotify.Remove):
				slog.Warn("Config file removed", logfields.Path(ev.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) trigger() {
	select {
	case cw.reload <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	defer cw.wg.Done()
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-cw.stopChan:
			stop()
			return
		case <-cw.reload:
			stop()
			timer = time.NewTimer(cw.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			slog.Info("Reloading configuration", logfields.Path(cw.configPath))
			if err := cw.onChange(ctx); err != nil {
				slog.Error("Failed to reload configuration", logfields.Path(cw.configPath), logfields.Error(err))
				continue
			}
			slog.Info("Configuration reloaded")
		}
	}
}
