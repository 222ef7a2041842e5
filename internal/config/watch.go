package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"kimera/internal/logging"
)

// Watch observes the workspace config file and invokes onChange with the
// freshly loaded config whenever it is written. The logging package is
// reloaded as well so debug-mode toggles take effect without a restart.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, workspace string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save,
	// which would orphan a file-level watch.
	dir := filepath.Dir(Path(workspace))
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Base(Path(workspace))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(workspace)
			if err != nil {
				logging.Get(logging.CategoryBoot).Warn("Config reload failed: %v", err)
				continue
			}
			if err := logging.ReloadConfig(); err != nil {
				logging.Get(logging.CategoryBoot).Warn("Logging reload failed: %v", err)
			}
			logging.Boot("Config reloaded from %s", event.Name)
			if onChange != nil {
				onChange(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryBoot).Warn("Config watcher error: %v", err)
		}
	}
}
