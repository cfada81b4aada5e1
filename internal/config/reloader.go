package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Reloader watches a config file and re-applies runtime-tunable settings
// (log level, KDF cost parameters) without a restart. Structural settings
// such as the listen address still require one.
type Reloader struct {
	path     string
	logger   *logrus.Logger
	onChange func(*Config)

	mu      sync.Mutex
	current *Config
}

// NewReloader creates a reloader for the given config file. onChange is
// invoked with the freshly loaded config after every successful reload.
func NewReloader(path string, initial *Config, logger *logrus.Logger, onChange func(*Config)) *Reloader {
	return &Reloader{
		path:     path,
		logger:   logger,
		onChange: onChange,
		current:  initial,
	}
}

// Current returns the most recently loaded config.
func (r *Reloader) Current() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Watch blocks until ctx is done, reloading on file changes. Editors often
// replace the file via rename, so the parent directory is watched and events
// are debounced.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	reloads := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			})
		case <-reloads:
			r.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.WithError(err).Warn("config watcher error")
		}
	}
}

func (r *Reloader) reload() {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		r.logger.WithError(err).Error("config reload failed, keeping previous config")
		return
	}

	r.mu.Lock()
	r.current = cfg
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"log_level":       cfg.LogLevel,
		"kdf_time_cost":   cfg.KDF.TimeCost,
		"kdf_memory_kib":  cfg.KDF.MemoryKiB,
		"kdf_parallelism": cfg.KDF.Parallelism,
	}).Info("config reloaded")

	if r.onChange != nil {
		r.onChange(cfg)
	}
}
