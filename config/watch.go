package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file on change. Editors often replace the file
// instead of writing in place, so both Write and Create events trigger a
// reload; CooldownTime absorbs the event bursts that produces.
type Watcher struct {
	Path         string
	CooldownTime time.Duration
}

// Start watches until ctx is done; onUpdate receives each config that loads
// and validates successfully. Invalid intermediate states are skipped.
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.CooldownTime <= 0 {
		w.CooldownTime = time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}

	var lastReload time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write != fsnotify.Write &&
				event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if time.Since(lastReload) < w.CooldownTime {
				continue
			}
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				continue
			}
			lastReload = time.Now()
			if onUpdate != nil {
				onUpdate(cfg)
			}
			// 文件被替换后需要重新挂 watch
			_ = fw.Add(w.Path)
		case _, ok := <-fw.Errors:
			if !ok {
				return nil
			}
		}
	}
}
