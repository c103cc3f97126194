package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the configuration of the project rooted at dir whenever its
// project config file changes and passes each valid result to onChange.
// Invalid configurations are logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, dir string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	// Watch the directory, not the file: editors replace files by rename.
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isProjectConfig(event.Name) || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config_watch_error", slog.String("error", err.Error()))
		case <-fire:
			fire = nil
			cfg, err := Load(dir)
			if err != nil {
				slog.Warn("config_reload_rejected",
					slog.String("dir", dir),
					slog.String("error", err.Error()))
				continue
			}
			slog.Info("config_reloaded", slog.String("dir", dir))
			onChange(cfg)
		}
	}
}

func isProjectConfig(path string) bool {
	base := filepath.Base(path)
	return base == projectFileYAML || base == projectFileYML
}
