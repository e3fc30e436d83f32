package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it changes and hands the fresh
// Config to onChange. This is the out-of-band approval path: an operator
// adds a pending sender to the allow list and the running gateway picks
// it up without a restart. Watch returns once the watcher is installed;
// it stops when ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// editors doing atomic rename-replace don't silently kill the watch.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	target, _ := filepath.Abs(path)

	go func() {
		defer watcher.Close()

		// Editors fire bursts of write events; coalesce them.
		var pending *time.Timer
		reload := func() {
			cfg, err := Load(path)
			if err != nil {
				slog.Warn("config reload failed, keeping previous config", "path", path, "error", err)
				return
			}
			if err := cfg.Validate(); err != nil {
				slog.Warn("reloaded config invalid, keeping previous config", "path", path, "error", err)
				return
			}
			slog.Info("config reloaded", "path", path, "allowed_senders", len(cfg.AllowedSenders()))
			onChange(cfg)
		}

		for {
			select {
			case <-ctx.Done():
				if pending != nil {
					pending.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				abs, _ := filepath.Abs(ev.Name)
				if abs != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(250*time.Millisecond, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	slog.Debug("config watcher installed", "path", path)
	return nil
}
