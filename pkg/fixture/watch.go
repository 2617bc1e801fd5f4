package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the fixture at path into s whenever the file is written or
// replaced, until ctx is cancelled. The directory is watched so that editors
// replacing the file by rename are picked up. Parse failures keep the
// previous data. onReload, when set, runs after each successful reload.
func Watch(ctx context.Context, path string, s *Source, logger *slog.Logger, onReload func()) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fixture watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				d, err := Load(path)
				if err != nil {
					logger.Warn("fixture reload failed", "path", path, "error", err)
					continue
				}
				s.Replace(d)
				logger.Info("fixture reloaded", "path", path, "bundles", len(d.Bundles))
				if onReload != nil {
					onReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("fixture watcher error", "error", err)
			}
		}
	}()
	return nil
}
