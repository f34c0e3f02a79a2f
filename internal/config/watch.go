package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/redbridgehc/clubhouse/internal/logger"
)

// Watch reloads the configuration whenever the file at path changes.
// Reload failures keep the previous configuration. The returned stop
// function closes the watcher.
func Watch(path string) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := Load(path); err != nil {
					logger.Warn("config reload failed, keeping previous", logger.Err(err))
					continue
				}
				logger.Info("configuration reloaded", logger.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", logger.Err(err))
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
