package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "weekplan/internal/log"
)

// reloadDelay lets editors finish writing before the file is re-read.
const reloadDelay = 250 * time.Millisecond

// Watch reloads path whenever it changes and hands every config that parses
// and validates to fn. It blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	dir := filepath.Dir(path)
	file := filepath.Base(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// Watch the directory: atomic saves replace the file and would drop a
	// watch on the file itself.
	if err := w.Add(dir); err != nil {
		return err
	}
	appLog.Debug("config watcher started", "dir", dir, "file", file)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		if ctx.Err() != nil {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			appLog.Warn("config reload failed", "path", path, "err", err.Error())
			return
		}
		cfg, err := Parse(data)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			appLog.Warn("config rejected", "path", path, "err", err.Error())
			return
		}
		appLog.Info("config reloaded", "path", path)
		fn(cfg)
	}
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDelay, reload)
	}
	defer func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Warn("config watch error", "dir", dir, "err", err.Error())
		}
	}
}
