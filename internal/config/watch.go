package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("config")

// Subsystems whose level follows logging.level.
var Subsystems = []string{
	"app", "chat", "call", "conference", "config", "feed",
	"invite", "p2p", "realtime", "storage", "subscription",
}

// ApplyLogLevel sets every registered vemeego subsystem to level.
func ApplyLogLevel(level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	if _, err := logging.LevelFromString(level); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	known := make(map[string]bool, len(Subsystems))
	for _, s := range Subsystems {
		known[s] = true
	}
	for _, s := range logging.GetSubsystems() {
		if !known[s] {
			continue
		}
		if err := logging.SetLogLevel(s, level); err != nil {
			return fmt.Errorf("set log level %s: %w", s, err)
		}
	}
	return nil
}

// Watch reloads the config file whenever it changes on disk and hands every
// valid result to fn. Invalid edits are logged and skipped. The returned stop
// func is safe to call more than once.
func Watch(path string, fn func(Config)) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// Editors often replace the file, so the directory is watched.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	name := filepath.Clean(path)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.Warnw("config reload failed", "path", path, "err", err)
					continue
				}
				log.Infow("config reloaded", "path", path)
				fn(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnw("watcher error", "err", err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			w.Close()
		})
	}, nil
}
