package file

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/threadline/internal/logger"
)

// watchPath calls onChange whenever path is written, created, renamed or removed.
// Editors that save by rename replace the watched inode, so the parent directory
// is watched and events are filtered by name. The watch ends when ctx is done.
func watchPath(ctx context.Context, dir string, match func(name string) bool, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !match(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					logger.Debug("file changed: %s (%s)", event.Name, event.Op)
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error: %v", err)
			}
		}
	}()
	return nil
}
