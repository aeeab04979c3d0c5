package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of editor writes into one reload.
const watchDebounce = 100 * time.Millisecond

// Watch reloads the source whenever its file changes, until ctx is done.
// onReload is called after each reload attempt with its error, if any.
func (s *Source) Watch(ctx context.Context, onReload func(error)) error {
	if s.path == "" {
		return fmt.Errorf("fixture was not loaded from a file")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := fw.Add(filepath.Dir(s.path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	go s.watchLoop(ctx, fw, onReload)
	return nil
}

func (s *Source) watchLoop(ctx context.Context, fw *fsnotify.Watcher, onReload func(error)) {
	defer func() { _ = fw.Close() }()

	target := filepath.Clean(s.path)
	var pending bool
	var last time.Time
	ticker := time.NewTicker(watchDebounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = true
				last = time.Now()
			}

		case <-ticker.C:
			if !pending || time.Since(last) < watchDebounce {
				continue
			}
			pending = false
			err := s.Reload()
			if err != nil {
				slog.Warn("Fixture reload failed", "path", s.path, "error", err)
			} else {
				slog.Info("Fixture reloaded", "path", s.path)
			}
			if onReload != nil {
				onReload(err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Warn("Fixture watch error", "path", s.path, "error", err)
		}
	}
}
