package bootstrap

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/eleven-am/dicton/internal/stt"
)

// StartConfigWatcher reloads credentials when an .env file changes so a key
// added through the config UI takes effect without a restart. Rebuilt
// providers replace the registered ones and the availability cache is
// dropped so the next session re-probes.
func StartConfigWatcher(lc fx.Lifecycle, registry *stt.Registry, log *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := make(map[string]struct{})
	for _, path := range envPaths() {
		dir := filepath.Dir(path)
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Debug("not watching config dir", "dir", dir, "error", err)
			continue
		}
		watched[dir] = struct{}{}
	}

	targets := make(map[string]struct{})
	for _, path := range envPaths() {
		if abs, err := filepath.Abs(path); err == nil {
			targets[abs] = struct{}{}
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				for {
					select {
					case event, ok := <-watcher.Events:
						if !ok {
							return
						}
						if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
							continue
						}
						abs, err := filepath.Abs(event.Name)
						if err != nil {
							continue
						}
						if _, ok := targets[abs]; !ok {
							continue
						}
						if err := godotenv.Overload(abs); err != nil {
							log.Warn("failed to reload env file", "path", abs, "error", err)
							continue
						}
						registerProviders(registry, LoadConfig(), log)
						registry.Invalidate()
						log.Info("credentials reloaded", "path", abs)
					case err, ok := <-watcher.Errors:
						if !ok {
							return
						}
						log.Warn("config watcher error", "error", err)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return watcher.Close()
		},
	})
	return nil
}

var WatcherModule = fx.Options(
	fx.Invoke(StartConfigWatcher),
)
