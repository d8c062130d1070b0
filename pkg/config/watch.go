package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch calls fn with a freshly loaded config every time the ini at path is
// written, created or renamed into place. It blocks until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func Watch(ctx context.Context, path string, defaults func() *UserConfig, fn func(*UserConfig, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// collapse bursts of events from a single save
			pending = time.After(watchDebounce)

		case <-pending:
			pending = nil
			base := defaults()
			base.IniPath = path
			cfg, err := LoadFile(abs, base)
			fn(cfg, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fn(nil, err)
		}
	}
}
