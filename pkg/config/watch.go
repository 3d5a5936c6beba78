package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/marmos91/dittostore/internal/logger"
)

// Watch reloads configPath whenever it changes and applies the new log
// level. onReload, when set, receives every configuration that loaded
// successfully. A file that fails to load is logged and ignored.
//
// The directory is watched rather than the file, so editors that replace
// the file on save are seen. Watch blocks until ctx is done.
func Watch(ctx context.Context, configPath string, onReload func(*Config)) error {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(abs)
			if err != nil {
				logger.Warn("config reload failed", "config", abs, logger.KeyError, err.Error())
				continue
			}
			if logger.GetLevel().String() != cfg.Logging.Level {
				logger.Info("log level changed", "level", cfg.Logging.Level)
				logger.SetLevel(cfg.Logging.Level)
			}
			if onReload != nil {
				onReload(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}
