package agent

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"

	"sprite/internal/logging"
)

const rosterDebounce = 150 * time.Millisecond

// WatchRoster reloads the roster into registry whenever the file changes,
// until ctx is done. The parent directory is watched so editors that replace
// the file by rename are handled. A roster that fails to parse leaves the
// previous one in place.
func WatchRoster(ctx context.Context, path string, registry *Registry, logger *logging.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(absolute)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absolute {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(rosterDebounce)
				} else {
					timer.Reset(rosterDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				reloadRoster(absolute, registry, logger)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("roster watch error", map[string]string{"path": absolute, "error": err.Error()})
			}
		}
	}()
	return nil
}

func reloadRoster(path string, registry *Registry, logger *logging.Logger) {
	agents, err := LoadRoster(path)
	if err != nil {
		logger.Warn("roster reload failed", map[string]string{"path": path, "error": err.Error()})
		return
	}
	registry.Replace(agents)
	logger.Info("roster reloaded", map[string]string{"path": path, "agents": strconv.Itoa(len(agents))})
}
